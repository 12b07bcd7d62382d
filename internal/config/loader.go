package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CROWDWATCH_"

// FileEnv names the variable holding the optional YAML file path.
const FileEnv = EnvPrefix + "CONFIG"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if CROWDWATCH_CONFIG is set
//  3. env (prefix CROWDWATCH_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like CROWDWATCH_QUEUE_SIZE -> queue_size (flat keys).
	prefix := strings.ToLower(EnvPrefix)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), prefix)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.QueueSize <= 0:
		return invalid("queue_size must be positive")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json")
	case strings.TrimSpace(c.FeedPath) == "":
		return invalid("feed_path must not be empty")
	case strings.TrimSpace(c.AuxMetricPath) == "":
		return invalid("aux_metric_path must not be empty")
	case c.FirebaseDatabaseURL != "" && c.FirebasePollIntervalMS <= 0:
		return invalid("firebase_poll_interval_ms must be positive")
	case c.MapsQPS < 0:
		return invalid("maps_qps must not be negative")
	case c.GeocodeTimeoutMS <= 0 || c.PositionTimeoutMS <= 0:
		return invalid("timeouts must be positive")
	case c.PositionMaxAgeS < 0:
		return invalid("position_max_age_s must not be negative")
	case c.DefaultLat < -90 || c.DefaultLat > 90 || c.DefaultLng < -180 || c.DefaultLng > 180:
		return invalid("default_lat/default_lng out of range")
	case c.DefaultZoom <= 0 || c.SessionZoom <= 0:
		return invalid("zoom levels must be positive")
	case c.HazardRadius <= 0:
		return invalid("hazard_radius must be positive")
	case c.RipplePulses <= 0 || c.RippleSteps <= 0 || c.RippleRadiusStep <= 0 || c.RippleStepDelayMS <= 0:
		return invalid("ripple parameters must be positive")
	case c.WSBuffer <= 0:
		return invalid("ws_buffer must be positive")
	case c.Simulate && c.SimIntervalMS <= 0:
		return invalid("sim_interval_ms must be positive")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
