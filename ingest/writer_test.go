package ingest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	mu      sync.Mutex
	batches [][]*RecordSet
	// failures counts down: each call fails while > 0
	failures int
}

func (e *fakeExecutor) ExecBatch(sets []*RecordSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failures > 0 {
		e.failures--
		return errors.New("transaction aborted")
	}
	e.batches = append(e.batches, sets)
	return nil
}

func (e *fakeExecutor) batchSizes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	sizes := make([]int, len(e.batches))
	for i, b := range e.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func fillQueue(q *Queue, n int) {
	for i := 0; i < n; i++ {
		q.Enqueue(recordSet(fmt.Sprintf("uid-%d", i)))
	}
}

func TestWriterFlushesFullBatchOnTick(t *testing.T) {
	q := NewQueue(1000) // watermark out of the way
	exec := &fakeExecutor{}
	w := NewBatchWriter(q, exec, WriterOptions{
		BatchSize: 5,
		MinWait:   10 * time.Millisecond,
		MaxWait:   time.Hour,
		// keep the stale path from firing during the test
		StaleThreshold: 1000,
	}, testLogger(), nil)

	fillQueue(q, 5)
	w.Start()
	defer w.Close()

	require.Eventually(t, func() bool { return w.Processed() == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{5}, exec.batchSizes())
	assert.Zero(t, q.Len())
}

func TestWriterForcesPartialBatchAfterMaxWait(t *testing.T) {
	q := NewQueue(1000)
	exec := &fakeExecutor{}
	w := NewBatchWriter(q, exec, WriterOptions{
		BatchSize:      5,
		MinWait:        10 * time.Millisecond,
		MaxWait:        80 * time.Millisecond,
		StaleThreshold: 1000,
	}, testLogger(), nil)

	fillQueue(q, 4)
	w.Start()
	defer w.Close()

	require.Eventually(t, func() bool { return w.Processed() == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{4}, exec.batchSizes())
}

func TestWriterDefersSmallFreshBacklog(t *testing.T) {
	q := NewQueue(1000)
	exec := &fakeExecutor{}
	w := NewBatchWriter(q, exec, WriterOptions{
		BatchSize:      10,
		MinWait:        10 * time.Millisecond,
		MaxWait:        time.Hour,
		StaleThreshold: 5,
	}, testLogger(), nil)

	fillQueue(q, 2)
	w.Start()
	defer w.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, w.Processed())
	assert.Equal(t, 2, q.Len())
}

func TestWriterDrainHintAbsorbsBurst(t *testing.T) {
	q := NewQueue(4) // 80% of one batch
	exec := &fakeExecutor{}
	w := NewBatchWriter(q, exec, WriterOptions{
		BatchSize:      5,
		MinWait:        time.Hour, // the tick alone would never fire in time
		MaxWait:        time.Hour,
		StaleThreshold: 1000,
	}, testLogger(), nil)

	w.Start()
	defer w.Close()
	fillQueue(q, 4)

	require.Eventually(t, func() bool { return w.Processed() == 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestWriterRetryWithBackoff(t *testing.T) {
	q := NewQueue(1000)
	exec := &fakeExecutor{failures: 2}
	w := NewBatchWriter(q, exec, WriterOptions{BatchSize: 3, MaxAttempts: 3}, testLogger(), nil)

	var delays []time.Duration
	w.sleep = func(d time.Duration) { delays = append(delays, d) }

	fillQueue(q, 3)
	w.flush()

	// committed exactly once, after two backoff delays
	assert.Equal(t, []int{3}, exec.batchSizes())
	assert.Equal(t, int64(3), w.Processed())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestWriterExhaustedRetriesDeadLetters(t *testing.T) {
	q := NewQueue(1000)
	exec := &fakeExecutor{failures: 100}

	var failed []*RecordSet
	var failedErr error
	handler := FailureHandlerFunc(func(sets []*RecordSet, err error) {
		failed = sets
		failedErr = err
	})

	w := NewBatchWriter(q, exec, WriterOptions{BatchSize: 3, MaxAttempts: 3}, testLogger(), handler)
	w.sleep = func(time.Duration) {}

	fillQueue(q, 2)
	w.flush()

	require.Len(t, failed, 2)
	assert.Error(t, failedErr)
	// the batch left the live queue; no retry storm
	assert.Zero(t, q.Len())
	assert.Zero(t, w.Processed())
}

func TestWriterFlushIsSingleFlight(t *testing.T) {
	q := NewQueue(1000)
	exec := &fakeExecutor{}
	w := NewBatchWriter(q, exec, WriterOptions{BatchSize: 3}, testLogger(), nil)

	fillQueue(q, 3)
	<-w.gate // simulate a flush already holding the permit
	w.flush()
	assert.Empty(t, exec.batchSizes())

	w.gate <- struct{}{}
	w.flush()
	assert.Equal(t, []int{3}, exec.batchSizes())
}

func TestWriterCloseDrainsRemaining(t *testing.T) {
	q := NewQueue(1000)
	exec := &fakeExecutor{}
	w := NewBatchWriter(q, exec, WriterOptions{
		BatchSize:      3,
		MinWait:        time.Hour,
		MaxWait:        time.Hour,
		StaleThreshold: 1000,
	}, testLogger(), nil)

	w.Start()
	fillQueue(q, 7)
	w.Close()

	assert.Equal(t, []int{3, 3, 1}, exec.batchSizes())
	assert.Equal(t, int64(7), w.Processed())
	assert.Zero(t, q.Len())
}

func TestWriterCloseWithoutStart(t *testing.T) {
	q := NewQueue(1000)
	exec := &fakeExecutor{}
	w := NewBatchWriter(q, exec, WriterOptions{BatchSize: 5}, testLogger(), nil)

	fillQueue(q, 2)
	w.Close()

	assert.Equal(t, []int{2}, exec.batchSizes())
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{20, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestShouldFlush(t *testing.T) {
	w := NewBatchWriter(NewQueue(10), &fakeExecutor{}, WriterOptions{
		BatchSize:      10,
		MaxWait:        60 * time.Second,
		StaleThreshold: 3,
	}, testLogger(), nil)

	tests := []struct {
		name  string
		len   int
		since time.Duration
		want  bool
	}{
		{"empty", 0, time.Hour, false},
		{"full batch", 10, 0, true},
		{"over full", 25, 0, true},
		{"partial stale", 4, 61 * time.Second, true},
		{"partial fresh", 4, 31 * time.Second, true}, // stale threshold path
		{"tiny fresh", 1, time.Second, false},
		{"tiny half-aged", 1, 31 * time.Second, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.shouldFlush(tt.len, tt.since), tt.name)
	}
}
