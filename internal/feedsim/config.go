// Package feedsim publishes simulated hazard snapshots into a realtime store.
//
// It is a development tool: densities follow a bounded random walk and have
// no meaning beyond exercising the ingest and render paths.
package feedsim

import (
	"time"

	"github.com/okian/crowdwatch/internal/domain/model"
)

// Defaults used by DefaultConfig.
const (
	DefaultNodes      = 12
	DefaultSpread     = 0.01 // degrees, roughly 1.1 km
	DefaultInterval   = 2 * time.Second
	DefaultStep       = 0.15
	DefaultMaxDensity = 2.0
)

// Config holds the simulation parameters.
type Config struct {
	Path       string         // Realtime path of the hazard records
	AuxPath    string         // Realtime path of the distress scalar; empty skips it
	Nodes      int            // Number of simulated hazard points
	Center     model.Position // Center of the simulated venue
	Spread     float64        // Max offset from Center in degrees
	Interval   time.Duration  // Delay between snapshots
	Step       float64        // Max density change per snapshot
	MaxDensity float64        // Upper bound of the walk
	Ticks      int            // Snapshots to publish; 0 runs until cancelled
	Seed       uint64         // Random seed; 0 picks one from the clock
	Verbose    bool           // Log every snapshot
}

// DefaultConfig returns a Config for the given realtime paths and venue center.
func DefaultConfig(path, auxPath string, center model.Position) Config {
	return Config{
		Path:       path,
		AuxPath:    auxPath,
		Nodes:      DefaultNodes,
		Center:     center,
		Spread:     DefaultSpread,
		Interval:   DefaultInterval,
		Step:       DefaultStep,
		MaxDensity: DefaultMaxDensity,
	}
}

// Stats holds run statistics.
type Stats struct {
	Ticks     int
	Published int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
