// Package queue provides a bounded in-memory work queue with a single
// sequential worker.
//
// The queue accepts items without blocking the producer; when full the
// item is rejected rather than queued, so a slow consumer back-pressures
// by dropping instead of stalling ingest. One worker drains the queue in
// FIFO order, applying a per-item timeout. Items are processed at most
// once; there is no retry.
package queue

import "errors"

// ErrFull is returned by Enqueue when the queue is at capacity.
var ErrFull = errors.New("queue full")

// Queue is a bounded FIFO queue. Enqueue never blocks.
type Queue[T any] struct {
	items chan T
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{items: make(chan T, capacity)}
}

// Enqueue adds an item, or returns ErrFull when at capacity.
// Callers decide whether a drop is worth logging.
func (q *Queue[T]) Enqueue(item T) error {
	select {
	case q.items <- item:
		return nil
	default:
		return ErrFull
	}
}

// Len reports the number of items currently queued.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// channel exposes the consumer side to Worker. Unexported so producers
// cannot bypass Enqueue.
func (q *Queue[T]) channel() <-chan T {
	return q.items
}
