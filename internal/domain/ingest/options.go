package ingest

import (
	"time"

	"github.com/okian/crowdwatch/pkg/logger"
)

// Option applies a configuration option to the Ingestor.
type Option func(*Ingestor)

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets a custom logger for the ingestor.
func WithLogger(l logger.Logger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}
