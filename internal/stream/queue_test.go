package stream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_DropsNewestWhenFull(t *testing.T) {
	q := NewQueue[int](100)

	for i := 0; i < 150; i++ {
		q.Push(i)
		if q.Len() > q.Cap() {
			t.Fatalf("queue length %d exceeds capacity %d", q.Len(), q.Cap())
		}
	}

	if q.Len() != 100 {
		t.Errorf("expected 100 queued, got %d", q.Len())
	}
	if q.Dropped() != 50 {
		t.Errorf("expected 50 dropped, got %d", q.Dropped())
	}

	for want := 0; want < 100; want++ {
		got, ok := q.TryRecv()
		if !ok {
			t.Fatalf("queue empty after %d items", want)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	if _, ok := q.TryRecv(); ok {
		t.Error("expected queue to be empty")
	}
}

func TestQueue_Push(t *testing.T) {
	q := NewQueue[string](1)

	if !q.Push("a") {
		t.Error("expected first push to succeed")
	}
	if q.Push("b") {
		t.Error("expected push into full queue to fail")
	}
}

func TestQueue_RecvTimeout(t *testing.T) {
	q := NewQueue[int](1)

	start := time.Now()
	_, err := q.Recv(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrRecvTimeout) {
		t.Fatalf("expected ErrRecvTimeout, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Recv returned before the timeout")
	}
}

func TestQueue_RecvContextCancelled(t *testing.T) {
	q := NewQueue[int](1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Recv(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQueue_RecvWaitsForPush(t *testing.T) {
	q := NewQueue[int](1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(42)
	}()

	got, err := q.Recv(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestNewQueue_MinimumCapacity(t *testing.T) {
	q := NewQueue[int](0)
	if q.Cap() != 1 {
		t.Errorf("expected capacity 1, got %d", q.Cap())
	}
}
