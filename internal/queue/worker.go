package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/plantops/plantops-core/internal/infrastructure/logging"
)

// Handler processes one queued item. The context carries the per-item
// timeout; implementations should respect it on outbound calls.
type Handler[T any] func(ctx context.Context, item T) error

// Worker drains a Queue sequentially. One item is in flight at a time,
// each under its own timeout. A failed item is logged and dropped; the
// worker never retries and never stops on handler errors.
type Worker[T any] struct {
	name    string
	queue   *Queue[T]
	handler Handler[T]
	timeout time.Duration
	log     *logging.Logger
}

// NewWorker creates a worker for the given queue. The name appears in
// log entries so multiple workers can share a log stream.
func NewWorker[T any](name string, q *Queue[T], handler Handler[T], timeout time.Duration, log *logging.Logger) *Worker[T] {
	return &Worker[T]{
		name:    name,
		queue:   q,
		handler: handler,
		timeout: timeout,
		log:     log.With("worker", name),
	}
}

// Run processes items until ctx is cancelled. The item in flight when
// cancellation arrives still runs to completion under its own timeout;
// everything left in the queue is abandoned.
func (w *Worker[T]) Run(ctx context.Context) {
	w.log.Info("worker started", "timeout", w.timeout.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped", "queued", w.queue.Len())
			return
		case item := <-w.queue.channel():
			w.process(ctx, item)
		}
	}
}

// process runs the handler for one item. The item context is detached
// from ctx's cancellation so shutdown does not cut an item mid-flight.
func (w *Worker[T]) process(ctx context.Context, item T) {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.safeHandle(itemCtx, item); err != nil {
		w.log.Error("item failed",
			"error", err,
			"duration", time.Since(start).String())
		return
	}

	w.log.Debug("item processed", "duration", time.Since(start).String())
}

// safeHandle invokes the handler, converting a panic into an error so a
// bad item cannot kill the worker.
func (w *Worker[T]) safeHandle(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, item)
}
