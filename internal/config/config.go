// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and CROWDWATCH_* environment variables on top.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the main loop task queue.
	QueueSize int `koanf:"queue_size"`

	// FeedPath is the realtime path of the hazard records.
	FeedPath string `koanf:"feed_path"`

	// AuxMetricPath is the realtime path of the distress density scalar.
	AuxMetricPath string `koanf:"aux_metric_path"`

	// FirebaseDatabaseURL selects the Firebase source. Empty means in-memory.
	FirebaseDatabaseURL string `koanf:"firebase_database_url"`

	// FirebaseCredentialsFile and FirebaseCredentialsB64 supply a service
	// account; the base64 form wins when both are set.
	FirebaseCredentialsFile string `koanf:"firebase_credentials_file"`
	FirebaseCredentialsB64  string `koanf:"firebase_credentials_b64"`

	// FirebasePollIntervalMS is how often subscriptions poll for changes.
	FirebasePollIntervalMS int `koanf:"firebase_poll_interval_ms"`

	// MapsAPIKey enables Google Maps geocoding. Empty disables lookups.
	MapsAPIKey string `koanf:"maps_api_key"`

	// MapsQPS caps geocoding requests per second; 0 keeps the client default.
	MapsQPS int `koanf:"maps_qps"`

	// GeocodeTimeoutMS and PositionTimeoutMS bound external lookups.
	GeocodeTimeoutMS  int `koanf:"geocode_timeout_ms"`
	PositionTimeoutMS int `koanf:"position_timeout_ms"`

	// PositionMaxAgeS is how old a reported device fix may be.
	PositionMaxAgeS int `koanf:"position_max_age_s"`

	// DefaultLat, DefaultLng and DefaultZoom set the initial viewport.
	DefaultLat  float64 `koanf:"default_lat"`
	DefaultLng  float64 `koanf:"default_lng"`
	DefaultZoom float64 `koanf:"default_zoom"`

	// SessionZoom is used when a session or search resolves.
	SessionZoom float64 `koanf:"session_zoom"`

	// HazardRadius is the density circle radius in meters.
	HazardRadius float64 `koanf:"hazard_radius"`

	// Ripple animation parameters.
	RipplePulses      int     `koanf:"ripple_pulses"`
	RippleSteps       int     `koanf:"ripple_steps"`
	RippleRadiusStep  float64 `koanf:"ripple_radius_step"`
	RippleStepDelayMS int     `koanf:"ripple_step_delay_ms"`

	// WSBuffer is the per-client WebSocket send buffer.
	WSBuffer int `koanf:"ws_buffer"`

	// Simulate runs the feed simulator in-process against the in-memory
	// source. Ignored when Firebase is configured.
	Simulate      bool `koanf:"simulate"`
	SimIntervalMS int  `koanf:"sim_interval_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		QueueSize:              1024,
		FeedPath:               "disaster",
		AuxMetricPath:          "density/densityHuman",
		FirebasePollIntervalMS: 1000,
		GeocodeTimeoutMS:       10_000,
		PositionTimeoutMS:      10_000,
		PositionMaxAgeS:        300,
		DefaultLat:             28.6096,
		DefaultLng:             77.3303,
		DefaultZoom:            13,
		SessionZoom:            15,
		HazardRadius:           300,
		RipplePulses:           3,
		RippleSteps:            30,
		RippleRadiusStep:       20,
		RippleStepDelayMS:      30,
		WSBuffer:               256,
		SimIntervalMS:          2000,
	}
}

// FirebasePollInterval returns FirebasePollIntervalMS as a duration.
func (c *Config) FirebasePollInterval() time.Duration {
	return time.Duration(c.FirebasePollIntervalMS) * time.Millisecond
}

// GeocodeTimeout returns GeocodeTimeoutMS as a duration.
func (c *Config) GeocodeTimeout() time.Duration {
	return time.Duration(c.GeocodeTimeoutMS) * time.Millisecond
}

// PositionTimeout returns PositionTimeoutMS as a duration.
func (c *Config) PositionTimeout() time.Duration {
	return time.Duration(c.PositionTimeoutMS) * time.Millisecond
}

// PositionMaxAge returns PositionMaxAgeS as a duration.
func (c *Config) PositionMaxAge() time.Duration {
	return time.Duration(c.PositionMaxAgeS) * time.Second
}

// RippleStepDelay returns RippleStepDelayMS as a duration.
func (c *Config) RippleStepDelay() time.Duration {
	return time.Duration(c.RippleStepDelayMS) * time.Millisecond
}

// SimInterval returns SimIntervalMS as a duration.
func (c *Config) SimInterval() time.Duration {
	return time.Duration(c.SimIntervalMS) * time.Millisecond
}
