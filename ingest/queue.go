package ingest

import "sync"

// Queue is an unbounded FIFO of record sets pending persistence.
// Enqueue never blocks; DequeueUpTo never blocks. When the backlog
// reaches hintAt entries, Enqueue signals the drain hint channel so the
// writer can absorb bursts without waiting for its next tick.
type Queue struct {
	mu     sync.Mutex
	items  []*RecordSet
	closed bool

	hintAt int
	hint   chan struct{}
}

func NewQueue(hintAt int) *Queue {
	if hintAt < 1 {
		hintAt = 1
	}
	return &Queue{
		hintAt: hintAt,
		hint:   make(chan struct{}, 1),
	}
}

// Enqueue appends a record set. Returns false only after Close, in which
// case the record set is dropped; the caller logs this, it never fails
// the in-flight protocol response.
func (q *Queue) Enqueue(rs *RecordSet) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, rs)
	signal := len(q.items) >= q.hintAt
	q.mu.Unlock()

	if signal {
		select {
		case q.hint <- struct{}{}:
		default:
		}
	}
	return true
}

// DequeueUpTo atomically removes and returns up to n of the oldest
// entries, or fewer if the queue holds fewer. Never blocks.
func (q *Queue) DequeueUpTo(n int) []*RecordSet {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}
	if n <= 0 {
		return nil
	}

	batch := make([]*RecordSet, n)
	copy(batch, q.items[:n])
	remaining := copy(q.items, q.items[n:])
	for i := remaining; i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = q.items[:remaining]
	return batch
}

// Len returns the current backlog size.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainHint is signalled when the backlog crosses the high watermark.
func (q *Queue) DrainHint() <-chan struct{} {
	return q.hint
}

// Close stops further enqueues. Already-buffered entries remain
// dequeueable for the shutdown flush.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
