package ingest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom-scp-server/models"
)

func recordSet(uid string) *RecordSet {
	return &RecordSet{
		Patient:  &models.Patient{PatientID: "P1"},
		Study:    &models.Study{StudyInstanceUID: "1.2"},
		Series:   &models.Series{SeriesInstanceUID: "1.2.3"},
		Instance: &models.Instance{SOPInstanceUID: uid},
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(100)

	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(recordSet(fmt.Sprintf("uid-%d", i))))
	}
	assert.Equal(t, 5, q.Len())

	batch := q.DequeueUpTo(3)
	require.Len(t, batch, 3)
	assert.Equal(t, "uid-0", batch[0].Instance.SOPInstanceUID)
	assert.Equal(t, "uid-2", batch[2].Instance.SOPInstanceUID)

	batch = q.DequeueUpTo(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "uid-3", batch[0].Instance.SOPInstanceUID)
	assert.Zero(t, q.Len())
}

func TestQueueDequeueEmpty(t *testing.T) {
	q := NewQueue(10)
	assert.Nil(t, q.DequeueUpTo(5))
	assert.Nil(t, q.DequeueUpTo(0))
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	q := NewQueue(10)
	require.True(t, q.Enqueue(recordSet("a")))
	q.Close()
	assert.False(t, q.Enqueue(recordSet("b")))
	// buffered entries survive Close for the shutdown flush
	assert.Equal(t, 1, q.Len())
}

func TestQueueDrainHintAtWatermark(t *testing.T) {
	q := NewQueue(3)

	q.Enqueue(recordSet("a"))
	q.Enqueue(recordSet("b"))
	select {
	case <-q.DrainHint():
		t.Fatal("hint fired below watermark")
	default:
	}

	q.Enqueue(recordSet("c"))
	select {
	case <-q.DrainHint():
	default:
		t.Fatal("hint not fired at watermark")
	}
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	q := NewQueue(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Enqueue(recordSet(fmt.Sprintf("uid-%d-%d", i, j)))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 500, q.Len())
	seen := map[string]bool{}
	for _, rs := range q.DequeueUpTo(500) {
		require.False(t, seen[rs.Instance.SOPInstanceUID])
		seen[rs.Instance.SOPInstanceUID] = true
	}
	assert.Len(t, seen, 500)
}
