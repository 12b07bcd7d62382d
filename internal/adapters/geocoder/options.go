package geocoder

import "github.com/okian/crowdwatch/pkg/logger"

// Option configures a Maps geocoder.
type Option func(*Maps)

// WithRegion biases forward lookups to a ccTLD region code.
func WithRegion(region string) Option {
	return func(m *Maps) { m.region = region }
}

// WithLanguage sets the result language.
func WithLanguage(lang string) Option {
	return func(m *Maps) { m.language = lang }
}

// WithRateLimit caps outgoing requests per second. Zero keeps the client default.
func WithRateLimit(qps int) Option {
	return func(m *Maps) { m.qps = qps }
}

// WithLogger sets a custom logger for the geocoder.
func WithLogger(l logger.Logger) Option {
	return func(m *Maps) {
		if l != nil {
			m.logger = l
		}
	}
}
