package ripple

import (
	"time"

	"github.com/okian/crowdwatch/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithPulses sets the number of rings per ripple.
func WithPulses(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.pulses = n
		}
	}
}

// WithSteps sets the number of radius steps per ring.
func WithSteps(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.steps = n
		}
	}
}

// WithRadiusStep sets the radius growth per step.
func WithRadiusStep(r float64) Option {
	return func(s *Scheduler) {
		if r > 0 {
			s.radiusStep = r
		}
	}
}

// WithStepDelay sets the pause between steps.
func WithStepDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
