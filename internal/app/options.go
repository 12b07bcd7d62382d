package service

import (
	"time"

	"github.com/okian/crowdwatch/internal/domain/ingest"
	"github.com/okian/crowdwatch/internal/domain/locate"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the realtime data source. Defaults to an in-memory store.
func WithSource(src ingest.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithGeocoder sets the geocoding provider. Defaults to one that always fails.
func WithGeocoder(g locate.Geocoder) Option {
	return func(s *Service) {
		if g != nil {
			s.geocoder = g
		}
	}
}

// WithQueueSize sets the capacity of the main loop queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithFeedPath sets the realtime path of the hazard feed.
func WithFeedPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.feedPath = path
		}
	}
}

// WithAuxMetricPath sets the realtime path of the distress density metric.
func WithAuxMetricPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.auxMetricPath = path
		}
	}
}

// WithDefaultCamera sets the initial viewport.
func WithDefaultCamera(center model.Position, zoom float64) Option {
	return func(s *Service) {
		s.defaultCenter = center
		if zoom > 0 {
			s.defaultZoom = zoom
		}
	}
}

// WithSessionZoom sets the zoom used for session and search results.
func WithSessionZoom(zoom float64) Option {
	return func(s *Service) {
		if zoom > 0 {
			s.sessionZoom = zoom
		}
	}
}

// WithHazardRadius sets the radius of hazard circles in meters.
func WithHazardRadius(r float64) Option {
	return func(s *Service) {
		if r > 0 {
			s.hazardRadius = r
		}
	}
}

// WithGeocodeTimeout bounds each geocoder call.
func WithGeocodeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.geocodeTimeout = d
		}
	}
}

// WithPositionTimeout bounds each device position request.
func WithPositionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.positionTimeout = d
		}
	}
}

// WithPositionMaxAge sets how old a reported fix may be.
func WithPositionMaxAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.positionMaxAge = d
		}
	}
}

// WithRipple sets the distress animation parameters.
func WithRipple(pulses, steps int, radiusStep float64, delay time.Duration) Option {
	return func(s *Service) {
		if pulses > 0 {
			s.ripplePulses = pulses
		}
		if steps > 0 {
			s.rippleSteps = steps
		}
		if radiusStep > 0 {
			s.rippleStep = radiusStep
		}
		if delay > 0 {
			s.rippleDelay = delay
		}
	}
}

// WithWSBuffer sets the per-client WebSocket send buffer.
func WithWSBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.wsBuffer = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
