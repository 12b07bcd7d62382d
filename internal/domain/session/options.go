package session

import (
	"time"

	"github.com/okian/crowdwatch/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithAuxMetricPath sets the realtime path of the distress density metric.
func WithAuxMetricPath(path string) Option {
	return func(m *Manager) {
		if path != "" {
			m.auxPath = path
		}
	}
}

// WithZoom sets the camera zoom used when a session resolves.
func WithZoom(z float64) Option {
	return func(m *Manager) {
		if z > 0 {
			m.zoom = z
		}
	}
}

// WithPositionTimeout bounds the device position request.
func WithPositionTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.positionTimeout = d
		}
	}
}

// WithAuxTimeout bounds the auxiliary metric fetch.
func WithAuxTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.auxTimeout = d
		}
	}
}

// WithClock overrides the transition timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
