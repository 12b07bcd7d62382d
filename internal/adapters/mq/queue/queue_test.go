package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	ran := ""
	if err := q.Push(ctx, func(context.Context) { ran = "task1" }); err != nil {
		t.Errorf("expected push to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	task := <-q.Dequeue(ctx)
	task(ctx)
	if ran != "task1" {
		t.Errorf("expected task1 to run, got %q", ran)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()
	noop := func(context.Context) {}

	if q.Push(ctx, noop) != nil || q.Push(ctx, noop) != nil {
		t.Fatal("expected push to succeed")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
	if q.Cap() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Cap())
	}
}

func TestInMemoryQueue_PushWaitsForSpace(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()
	noop := func(context.Context) {}

	if err := q.Push(ctx, noop); err != nil {
		t.Fatalf("expected push to succeed, got %v", err)
	}

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(ctx, noop) }()

	select {
	case <-pushed:
		t.Fatal("expected push to block while full")
	case <-time.After(20 * time.Millisecond):
	}

	<-q.Dequeue(ctx)
	select {
	case err := <-pushed:
		if err != nil {
			t.Errorf("expected blocked push to succeed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected blocked push to complete after a dequeue")
	}
}

func TestInMemoryQueue_PushHonorsContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	noop := func(context.Context) {}
	_ = q.Push(context.Background(), noop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, noop); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if err := q.Push(context.Background(), nil); !errors.Is(err, ErrNilTask) {
		t.Errorf("expected ErrNilTask, got %v", err)
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		if err := q.Push(ctx, func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	_ = q.Close()

	for task := range q.Dequeue(ctx) {
		task(ctx)
	}
	if len(order) != 50 {
		t.Fatalf("expected 50 tasks, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected task %d at position %d, got %d", i, i, v)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()
	noop := func(context.Context) {}

	_ = q.Push(ctx, noop)

	// A producer blocked on a full queue is released by Close.
	blocked := make(chan error, 1)
	go func() { blocked <- q.Push(ctx, noop) }()
	time.Sleep(10 * time.Millisecond)

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if err := <-blocked; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed for blocked producer, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Push(ctx, noop); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after closing, got %v", err)
	}

	// The task queued before Close is still delivered, then the channel closes.
	count := 0
	for range q.Dequeue(ctx) {
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 drained task, got %d", count)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
