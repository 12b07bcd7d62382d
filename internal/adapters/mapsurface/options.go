package mapsurface

import "time"

// Option configures a Scene.
type Option func(*Scene)

// WithBroadcaster forwards every operation to b.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Scene) { s.broadcaster = b }
}

// WithLogSize caps the number of operations kept for replay.
func WithLogSize(n int) Option {
	return func(s *Scene) {
		if n > 0 {
			s.logSize = n
		}
	}
}

// WithClock overrides the operation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scene) {
		if now != nil {
			s.now = now
		}
	}
}
