// Package worker runs the single-consumer main loop.
//
// Every mutation of core state happens inside a task executed by Loop.Run.
// Background goroutines never touch that state directly; they Post a task.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/crowdwatch/internal/adapters/mq/queue"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// Queue defines how the loop receives and accepts tasks.
type Queue interface {
	Push(ctx context.Context, t queue.Task) error
	Dequeue(ctx context.Context) <-chan queue.Task
	Close() error
}

// Loop executes queued tasks one at a time in FIFO order.
type Loop struct {
	queue Queue
	name  string

	// Shutdown control
	started      chan struct{}
	startOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	// Logging
	logger logger.Logger
}

// NewLoop creates a main loop consuming from q.
func NewLoop(q Queue, opts ...Option) *Loop {
	l := &Loop{
		queue:    q,
		name:     "loop",
		started:  make(chan struct{}),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("loop"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run executes tasks until ctx is canceled, Shutdown is called, or the queue is drained after Close.
// Run must be called at most once.
func (l *Loop) Run(ctx context.Context) {
	l.startOnce.Do(func() { close(l.started) })
	defer close(l.done)

	tasks := l.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			// Drain what was queued before shutdown.
			for t := range tasks {
				l.execute(ctx, t)
			}
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			l.execute(ctx, t)
		}
	}
}

// execute runs one task, containing panics so the loop survives.
func (l *Loop) execute(ctx context.Context, t queue.Task) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("loop", "panic")
			l.logger.Error(ctx, "task panicked", logger.String("loop", l.name), logger.Any("panic", r))
		}
	}()
	t(ctx)
}

// Post schedules fn on the loop. It blocks while the queue is full.
func (l *Loop) Post(ctx context.Context, fn func(context.Context)) error {
	if fn == nil {
		return queue.ErrNilTask
	}
	if err := l.queue.Push(ctx, fn); err != nil {
		return fmt.Errorf("post to %s: %w", l.name, err)
	}
	return nil
}

// Call schedules fn and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	if err := l.Post(ctx, func(c context.Context) {
		defer close(finished)
		fn(c)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// The loop may have run the task just before exiting.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return fmt.Errorf("call on %s: %w", l.name, ctx.Err())
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Shutdown closes the queue, lets the loop drain it, and waits.
func (l *Loop) Shutdown(ctx context.Context) error {
	if err := l.queue.Close(); err != nil {
		l.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	l.shutdownOnce.Do(func() { close(l.shutdown) })

	select {
	case <-l.started:
	default:
		// Never ran; nothing to wait for.
		return nil
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
