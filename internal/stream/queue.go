package stream

import (
	"context"
	"sync/atomic"
	"time"
)

// Queue is a bounded FIFO that never blocks the producer. When full, the
// newest item is rejected and counted as dropped.
type Queue[T any] struct {
	ch      chan T
	dropped atomic.Int64
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Push adds item unless the queue is full. Returns false if it was dropped.
func (q *Queue[T]) Push(item T) bool {
	select {
	case q.ch <- item:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Recv removes the oldest item, waiting up to timeout (forever if timeout <= 0).
// Returns ErrRecvTimeout when nothing arrived in time.
func (q *Queue[T]) Recv(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T

	// Fast path
	select {
	case item := <-q.ch:
		return item, nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case item := <-q.ch:
		return item, nil
	case <-expired:
		return zero, ErrRecvTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryRecv removes the oldest item without blocking.
func (q *Queue[T]) TryRecv() (T, bool) {
	select {
	case item := <-q.ch:
		return item, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for select loops.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Dropped returns how many items were rejected because the queue was full.
func (q *Queue[T]) Dropped() int64 {
	return q.dropped.Load()
}
