package realtime

import (
	"context"
	"sync"

	"github.com/okian/crowdwatch/internal/domain/ingest"
	"github.com/okian/crowdwatch/pkg/logger"
)

const defaultSubscriberBuffer = 16

// Memory is an in-process realtime store for development and tests.
type Memory struct {
	mu          sync.Mutex
	values      map[string]any
	fetchErrors map[string]error
	subs        map[string][]*subscriber
	buffer      int
	logger      logger.Logger
}

type subscriber struct {
	ctx    context.Context
	ch     chan ingest.RawEvent
	mu     sync.Mutex
	closed bool
}

// deliver blocks until the subscriber takes ev or goes away.
func (s *subscriber) deliver(ev ingest.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	case <-s.ctx.Done():
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// NewMemory creates an empty store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		values:      make(map[string]any),
		fetchErrors: make(map[string]error),
		subs:        make(map[string][]*subscriber),
		buffer:      defaultSubscriberBuffer,
		logger:      logger.Get().Named("realtime.memory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe streams the value at path, starting with the current one if set.
func (m *Memory) Subscribe(ctx context.Context, path string) <-chan ingest.RawEvent {
	sub := &subscriber{ctx: ctx, ch: make(chan ingest.RawEvent, m.buffer)}

	m.mu.Lock()
	m.subs[path] = append(m.subs[path], sub)
	current, ok := m.values[path]
	m.mu.Unlock()

	if ok {
		sub.deliver(eventFrom(current))
	}
	go func() {
		<-ctx.Done()
		m.unsubscribe(path, sub)
		sub.close()
	}()
	return sub.ch
}

// FetchOnce returns the value at path, or nil when unset.
func (m *Memory) FetchOnce(_ context.Context, path string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErrors[path]; err != nil {
		return nil, err
	}
	return m.values[path], nil
}

// Publish stores value at path and pushes it to subscribers.
func (m *Memory) Publish(ctx context.Context, path string, value any) error {
	v, err := decode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[path] = v
	subs := append([]*subscriber(nil), m.subs[path]...)
	m.mu.Unlock()

	m.logger.Debug(ctx, "published", logger.String("path", path), logger.Int("subscribers", len(subs)))
	ev := eventFrom(v)
	for _, s := range subs {
		s.deliver(ev)
	}
	return nil
}

// SetValue stores value at path without notifying subscribers.
func (m *Memory) SetValue(path string, value any) error {
	v, err := decode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = v
	delete(m.fetchErrors, path)
	return nil
}

// Fail pushes an error event to subscribers of path.
func (m *Memory) Fail(path string, err error) {
	m.mu.Lock()
	subs := append([]*subscriber(nil), m.subs[path]...)
	m.mu.Unlock()
	for _, s := range subs {
		s.deliver(ingest.RawEvent{Err: err})
	}
}

// FailFetch makes FetchOnce on path return err until the next SetValue.
func (m *Memory) FailFetch(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrors[path] = err
}

// Subscribers returns the number of live subscriptions on path.
func (m *Memory) Subscribers(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[path])
}

func (m *Memory) unsubscribe(path string, sub *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[path]
	for i, s := range list {
		if s == sub {
			m.subs[path] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.subs[path]) == 0 {
		delete(m.subs, path)
	}
}
