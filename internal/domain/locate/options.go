package locate

import (
	"time"

	"github.com/okian/crowdwatch/pkg/logger"
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithTimeout bounds each geocoder call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}
