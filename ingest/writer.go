package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// BatchExecutor persists one batch of record sets in a single
// transaction. A non-nil error means the whole batch rolled back and may
// be retried as a unit.
type BatchExecutor interface {
	ExecBatch(sets []*RecordSet) error
}

// FailureHandler receives batches whose retries were exhausted. The
// batch is out of the live queue at that point; the handler decides how
// the data stays visible (log, alert, dead-letter file).
type FailureHandler interface {
	HandleFailedBatch(sets []*RecordSet, err error)
}

// FailureHandlerFunc adapts a function to the FailureHandler interface.
type FailureHandlerFunc func(sets []*RecordSet, err error)

func (f FailureHandlerFunc) HandleFailedBatch(sets []*RecordSet, err error) {
	f(sets, err)
}

// WriterOptions tune the flush policy. Zero values fall back to
// defaults.
type WriterOptions struct {
	BatchSize int
	// MinWait is the polling interval; the writer wakes at least this
	// often to reconsider flushing.
	MinWait time.Duration
	// MaxWait bounds metadata staleness: a partial batch is forced out
	// once this much time has passed since the last flush.
	MaxWait time.Duration
	// StaleThreshold flushes a small-but-aging backlog once half of
	// MaxWait has elapsed. Defaults to a quarter of BatchSize.
	StaleThreshold int
	MaxAttempts    int
}

func (o *WriterOptions) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MinWait <= 0 {
		o.MinWait = 2 * time.Second
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 30 * time.Second
	}
	if o.StaleThreshold <= 0 {
		o.StaleThreshold = o.BatchSize / 4
		if o.StaleThreshold < 1 {
			o.StaleThreshold = 1
		}
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
}

// BatchWriter drains the queue into the executor on an adaptive
// interval. One writer runs process-wide; at most one flush is in flight
// at any moment.
type BatchWriter struct {
	queue     *Queue
	exec      BatchExecutor
	onFailure FailureHandler
	opts      WriterOptions
	logger    logrus.FieldLogger

	// single-permit gate around flush
	gate chan struct{}

	processed int64
	lastFlush int64 // unix nanos

	sleep func(time.Duration)

	stop     chan struct{}
	done     chan struct{}
	started  sync.Once
	stopped  sync.Once
}

func NewBatchWriter(queue *Queue, exec BatchExecutor, opts WriterOptions, logger logrus.FieldLogger, onFailure FailureHandler) *BatchWriter {
	opts.applyDefaults()

	w := &BatchWriter{
		queue:     queue,
		exec:      exec,
		onFailure: onFailure,
		opts:      opts,
		logger:    logger,
		gate:      make(chan struct{}, 1),
		lastFlush: time.Now().UnixNano(),
		sleep:     time.Sleep,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.gate <- struct{}{}
	if w.onFailure == nil {
		w.onFailure = FailureHandlerFunc(w.logFailedBatch)
	}
	return w
}

// Start launches the background drain loop.
func (w *BatchWriter) Start() {
	w.started.Do(func() {
		go w.run()
	})
}

// Close stops the loop and synchronously flushes whatever is still
// buffered, with the same retry policy. No data buffered before Close is
// silently lost.
func (w *BatchWriter) Close() {
	w.stopped.Do(func() {
		close(w.stop)
		// If Start was never called nobody will close done; claim the
		// Once ourselves so Close cannot hang.
		w.started.Do(func() { close(w.done) })
		<-w.done
		w.queue.Close()
		for w.queue.Len() > 0 {
			w.flush()
		}
	})
}

// Processed returns the cumulative count of persisted record sets.
func (w *BatchWriter) Processed() int64 {
	return atomic.LoadInt64(&w.processed)
}

// LastFlush returns the time of the most recent successful flush.
func (w *BatchWriter) LastFlush() time.Time {
	return time.Unix(0, atomic.LoadInt64(&w.lastFlush))
}

func (w *BatchWriter) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.opts.MinWait)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if w.shouldFlush(w.queue.Len(), time.Since(w.LastFlush())) {
				w.flush()
			}
		case <-w.queue.DrainHint():
			// Producers saw the backlog hit the high watermark;
			// absorb the burst without waiting for the next tick.
			if w.queue.Len() >= w.queue.hintAt {
				w.flush()
			}
		}
	}
}

// shouldFlush decides whether this tick writes: a full batch is always
// written, a partial one once it is older than MaxWait, and a small
// backlog once it has aged past half of MaxWait.
func (w *BatchWriter) shouldFlush(queueLen int, sinceLast time.Duration) bool {
	if queueLen <= 0 {
		return false
	}
	if queueLen >= w.opts.BatchSize {
		return true
	}
	if sinceLast >= w.opts.MaxWait {
		return true
	}
	return queueLen >= w.opts.StaleThreshold && sinceLast >= w.opts.MaxWait/2
}

// flush executes at most one batch. A concurrent flush already holding
// the gate turns this call into a no-op for this tick.
func (w *BatchWriter) flush() {
	select {
	case <-w.gate:
	default:
		return
	}
	defer func() { w.gate <- struct{}{} }()

	batch := w.queue.DequeueUpTo(w.opts.BatchSize)
	if len(batch) == 0 {
		return
	}
	w.executeWithRetry(batch)
}

func (w *BatchWriter) executeWithRetry(batch []*RecordSet) {
	var err error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		err = w.exec.ExecBatch(batch)
		if err == nil {
			atomic.AddInt64(&w.processed, int64(len(batch)))
			atomic.StoreInt64(&w.lastFlush, time.Now().UnixNano())
			w.logger.WithFields(logrus.Fields{
				"batch_size": len(batch),
				"attempt":    attempt,
				"processed":  w.Processed(),
			}).Debug("metadata batch committed")
			return
		}

		w.logger.WithError(err).WithFields(logrus.Fields{
			"batch_size": len(batch),
			"attempt":    attempt,
		}).Warn("metadata batch failed")

		if attempt < w.opts.MaxAttempts {
			w.sleep(backoffDelay(attempt))
		}
	}

	w.onFailure.HandleFailedBatch(batch, err)
}

func (w *BatchWriter) logFailedBatch(batch []*RecordSet, err error) {
	// Dead-letter by logging every instance so the data stays visible
	// for manual re-ingest.
	for _, rs := range batch {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"sop_instance_uid": rs.Instance.SOPInstanceUID,
			"file_path":        rs.Instance.FilePath,
		}).Error("metadata batch abandoned after retries")
	}
}

// backoffDelay is the pure retry schedule: 2^attempt seconds, capped at
// 30 seconds.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
