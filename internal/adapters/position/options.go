package position

import (
	"time"

	"github.com/okian/crowdwatch/pkg/logger"
)

// Option configures a Latest provider.
type Option func(*Latest)

// WithMaxAge sets how old a fix may be. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(l *Latest) {
		if d >= 0 {
			l.maxAge = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Latest) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets a custom logger for the provider.
func WithLogger(lg logger.Logger) Option {
	return func(l *Latest) {
		if lg != nil {
			l.logger = lg
		}
	}
}
