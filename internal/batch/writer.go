// Package batch queues heterogeneous persistence operations and commits
// them in bounded, transactional batches.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bookedby/convoqa/internal/models"
)

// Defaults for batch sizing and the background flush interval.
const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = time.Second
)

// Committer commits a batch of operations in one transaction. A returned
// error must mean none of the batch was persisted.
type Committer interface {
	CommitBatch(ctx context.Context, ops []models.BatchWriteOperation) error
}

// FlushEvent notifies observers of one flush attempt.
type FlushEvent struct {
	Ops int
	Err error
}

// Observer receives flush notifications. Observers run on the flushing
// goroutine and should return quickly.
type Observer func(FlushEvent)

// Writer queues operations and flushes them in batches. Writes are never
// silently dropped: a failed batch is returned to the front of the queue
// for the next flush (at-least-once).
type Writer struct {
	committer Committer
	batchSize int
	interval  time.Duration
	disabled  bool
	logger    *slog.Logger

	mu        sync.Mutex
	queue     []models.BatchWriteOperation
	flushing  bool
	observers []Observer

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithBatchSize sets the size-trigger threshold.
func WithBatchSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval sets the background flush period. Zero disables the
// timer (tests flush explicitly).
func WithFlushInterval(d time.Duration) WriterOption {
	return func(w *Writer) {
		w.interval = d
	}
}

// WithBatchingDisabled makes Add execute each operation immediately and
// synchronously instead of queueing.
func WithBatchingDisabled() WriterOption {
	return func(w *Writer) {
		w.disabled = true
	}
}

// NewWriter creates a Writer and starts its background flush timer.
func NewWriter(committer Committer, logger *slog.Logger, opts ...WriterOption) *Writer {
	w := &Writer{
		committer: committer,
		batchSize: DefaultBatchSize,
		interval:  DefaultFlushInterval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	if !w.disabled && w.interval > 0 {
		go w.timerLoop()
	} else {
		close(w.doneCh)
	}
	return w
}

// OnFlush registers an observer for flush outcomes.
func (w *Writer) OnFlush(obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, obs)
}

// Add enqueues an operation. When the queue reaches the batch size a flush
// is triggered; its outcome is reported to observers, not to the Add
// caller. With batching disabled the operation is committed immediately
// and the commit error returned.
func (w *Writer) Add(ctx context.Context, op models.BatchWriteOperation) error {
	if w.disabled {
		if err := w.committer.CommitBatch(ctx, []models.BatchWriteOperation{op}); err != nil {
			return fmt.Errorf("batch: direct commit: %w", err)
		}
		return nil
	}

	w.mu.Lock()
	w.queue = append(w.queue, op)
	trigger := len(w.queue) >= w.batchSize && !w.flushing
	w.mu.Unlock()

	if trigger {
		if err := w.Flush(ctx); err != nil {
			w.logger.Warn("batch: size-triggered flush failed, batch requeued", "error", err)
		}
	}
	return nil
}

// Flush commits the entire current queue in one transaction. A flush while
// another is in flight, or with an empty queue, is a no-op. On failure the
// batch goes back to the front of the queue and the error is returned and
// emitted to observers.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.flushing || len(w.queue) == 0 {
		w.mu.Unlock()
		return nil
	}
	w.flushing = true
	taken := w.queue
	w.queue = nil
	w.mu.Unlock()

	err := w.committer.CommitBatch(ctx, taken)

	w.mu.Lock()
	if err != nil {
		// Preserve original order: the failed batch precedes anything
		// queued while the commit was running.
		w.queue = append(taken, w.queue...)
	}
	w.flushing = false
	observers := append([]Observer(nil), w.observers...)
	w.mu.Unlock()

	event := FlushEvent{Ops: len(taken), Err: err}
	for _, obs := range observers {
		obs(event)
	}

	if err != nil {
		return fmt.Errorf("batch: flush %d ops: %w", len(taken), err)
	}
	return nil
}

// Shutdown stops the timer and performs one final flush. Calling it with
// an empty queue is a no-op, not an error.
func (w *Writer) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
	return w.Flush(ctx)
}

// QueueLen reports the current queue depth.
func (w *Writer) QueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Writer) timerLoop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.Flush(context.Background()); err != nil {
				w.logger.Warn("batch: periodic flush failed, batch requeued", "error", err)
			}
		}
	}
}
