package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/crowdwatch/internal/adapters/realtime"
	"github.com/okian/crowdwatch/internal/config"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/feedsim"
	"github.com/okian/crowdwatch/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	sim := feedsim.DefaultConfig(cfg.FeedPath, cfg.AuxMetricPath, model.Position{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng})
	var (
		nodes    = flag.Int("nodes", sim.Nodes, "Number of simulated hazard points")
		lat      = flag.Float64("lat", sim.Center.Lat, "Venue center latitude")
		lng      = flag.Float64("lng", sim.Center.Lng, "Venue center longitude")
		spread   = flag.Float64("spread", sim.Spread, "Max offset from the center in degrees")
		interval = flag.Duration("interval", sim.Interval, "Delay between snapshots")
		step     = flag.Float64("step", sim.Step, "Max density change per snapshot")
		ticks    = flag.Int("ticks", 0, "Snapshots to publish, 0 runs until interrupted")
		seed     = flag.Uint64("seed", 0, "Random seed, 0 picks one from the clock")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Log every snapshot")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedsim.ShowHelp()
		return
	}
	if err := feedsim.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	sim.Nodes = *nodes
	sim.Center = model.Position{Lat: *lat, Lng: *lng}
	sim.Spread = *spread
	sim.Interval = *interval
	sim.Step = *step
	sim.Ticks = *ticks
	sim.Seed = *seed
	sim.Verbose = *verbose

	store, err := realtime.NewFirebase(ctx, realtime.FirebaseConfig{
		DatabaseURL:     cfg.FirebaseDatabaseURL,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		CredentialsB64:  cfg.FirebaseCredentialsB64,
	})
	if err != nil {
		os.Stderr.WriteString("failed to open realtime database: " + err.Error() + "\n")
		return
	}

	stats, err := feedsim.Run(ctx, store, sim)
	if err != nil && ctx.Err() == nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
	logger.Get().Info(context.Background(), "simulation stopped",
		logger.Int("ticks", stats.Ticks),
		logger.Int("published", stats.Published),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration))
}
