package realtime

import (
	"time"

	"github.com/okian/crowdwatch/pkg/logger"
)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithSubscriberBuffer sets the per-subscriber event buffer.
func WithSubscriberBuffer(n int) MemoryOption {
	return func(m *Memory) {
		if n >= 0 {
			m.buffer = n
		}
	}
}

// WithMemoryLogger sets a custom logger for the memory store.
func WithMemoryLogger(l logger.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// FirebaseOption configures a Firebase source.
type FirebaseOption func(*Firebase)

// WithPollInterval sets how often subscriptions check for changes.
func WithPollInterval(d time.Duration) FirebaseOption {
	return func(f *Firebase) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithFirebaseLogger sets a custom logger for the Firebase source.
func WithFirebaseLogger(l logger.Logger) FirebaseOption {
	return func(f *Firebase) {
		if l != nil {
			f.logger = l
		}
	}
}
