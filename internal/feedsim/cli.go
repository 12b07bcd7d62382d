package feedsim

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/crowdwatch/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to stdout and, when logFile is set, to
// that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWithWriter(w, logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	os.Stdout.WriteString(`crowdwatch feed simulator
=========================

Publishes random-walk hazard densities into the Firebase Realtime Database
configured for crowdwatch (CROWDWATCH_FIREBASE_DATABASE_URL and credentials).

Usage:
  go run ./cmd/feed-sim [options]

Options:
  -nodes int
        Number of simulated hazard points (default 12)
  -lat float, -lng float
        Venue center (default: configured default_lat/default_lng)
  -spread float
        Max offset from the center in degrees (default 0.01)
  -interval duration
        Delay between snapshots (default 2s)
  -step float
        Max density change per snapshot (default 0.15)
  -ticks int
        Snapshots to publish, 0 runs until interrupted (default 0)
  -seed uint
        Random seed, 0 picks one from the clock
  -log string
        Also write logs to this file
  -verbose
        Log every snapshot
  -help
        Show this help message

Examples:
  # Simulate a small venue for one minute
  go run ./cmd/feed-sim -nodes 5 -interval 1s -ticks 60
`)
}
