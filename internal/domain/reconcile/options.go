package reconcile

import "github.com/okian/crowdwatch/pkg/logger"

// Option applies a configuration option to the Table.
type Option func(*Table)

// WithHazardRadius sets the radius of the density circle drawn around each node.
func WithHazardRadius(r float64) Option {
	return func(t *Table) {
		if r > 0 {
			t.hazardRadius = r
		}
	}
}

// WithLogger sets a custom logger for the table.
func WithLogger(l logger.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}
