package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/crowdwatch/internal/adapters/geocoder"
	"github.com/okian/crowdwatch/internal/adapters/http/api"
	"github.com/okian/crowdwatch/internal/adapters/http/site"
	"github.com/okian/crowdwatch/internal/adapters/http/swagger"
	"github.com/okian/crowdwatch/internal/adapters/realtime"
	app "github.com/okian/crowdwatch/internal/app"
	"github.com/okian/crowdwatch/internal/config"
	"github.com/okian/crowdwatch/internal/domain/ingest"
	"github.com/okian/crowdwatch/internal/domain/locate"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/feedsim"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Optional .env next to the binary; real env vars win.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("invalid log_format: " + err.Error() + "\n")
		return
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	src, mem, err := newSource(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open realtime source", logger.Error(err))
		return
	}
	geo := newGeocoder(ctx, cfg, loggerInstance)

	svc := app.New(serviceOptions(cfg, src, geo, loggerInstance.Named("service"))...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	if mem != nil && cfg.Simulate {
		go runSimulation(ctx, mem, cfg)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newSource opens Firebase when a database URL is configured and falls back
// to an in-memory store otherwise. The memory store is returned separately so
// the simulator can publish into it.
func newSource(ctx context.Context, cfg *config.Config) (ingest.Source, *realtime.Memory, error) {
	if cfg.FirebaseDatabaseURL == "" {
		logger.Get().Warn(ctx, "no firebase_database_url; using in-memory realtime source")
		mem := realtime.NewMemory()
		return mem, mem, nil
	}
	fb, err := realtime.NewFirebase(ctx, realtime.FirebaseConfig{
		DatabaseURL:     cfg.FirebaseDatabaseURL,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		CredentialsB64:  cfg.FirebaseCredentialsB64,
	}, realtime.WithPollInterval(cfg.FirebasePollInterval()))
	if err != nil {
		return nil, nil, err
	}
	return fb, nil, nil
}

// newGeocoder returns the Google Maps geocoder, or one that always fails when
// no key is configured.
func newGeocoder(ctx context.Context, cfg *config.Config, log logger.Logger) locate.Geocoder {
	if cfg.MapsAPIKey == "" {
		log.Warn(ctx, "no maps_api_key; search and reverse lookups are disabled")
		return geocoder.Unavailable{}
	}
	m, err := geocoder.NewMaps(cfg.MapsAPIKey,
		geocoder.WithRateLimit(cfg.MapsQPS),
		geocoder.WithLogger(log.Named("geocoder")),
	)
	if err != nil {
		log.Warn(ctx, "maps geocoder unavailable", logger.Error(err))
		return geocoder.Unavailable{}
	}
	return m
}

func serviceOptions(cfg *config.Config, src ingest.Source, geo locate.Geocoder, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log),
		app.WithSource(src),
		app.WithGeocoder(geo),
		app.WithQueueSize(cfg.QueueSize),
		app.WithFeedPath(cfg.FeedPath),
		app.WithAuxMetricPath(cfg.AuxMetricPath),
		app.WithDefaultCamera(model.Position{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng}, cfg.DefaultZoom),
		app.WithSessionZoom(cfg.SessionZoom),
		app.WithHazardRadius(cfg.HazardRadius),
		app.WithGeocodeTimeout(cfg.GeocodeTimeout()),
		app.WithPositionTimeout(cfg.PositionTimeout()),
		app.WithPositionMaxAge(cfg.PositionMaxAge()),
		app.WithRipple(cfg.RipplePulses, cfg.RippleSteps, cfg.RippleRadiusStep, cfg.RippleStepDelay()),
		app.WithWSBuffer(cfg.WSBuffer),
	}
}

// newMux registers the API, the WebSocket stream, the docs and the viewer.
// svc must be started so its hub exists.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	var stream http.Handler
	if hub := svc.Hub(); hub != nil {
		stream = hub
	}
	api.NewServer(svc, svc, stream).Register(ctx, mux)
	return mux
}

func runSimulation(ctx context.Context, mem *realtime.Memory, cfg *config.Config) {
	sim := feedsim.DefaultConfig(cfg.FeedPath, cfg.AuxMetricPath, model.Position{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng})
	sim.Interval = cfg.SimInterval()
	if _, err := feedsim.Run(ctx, mem, sim); err != nil && ctx.Err() == nil {
		logger.Get().Error(ctx, "feed simulation stopped", logger.Error(err))
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	// GetStats refreshes the queue gauges itself
	stats := svc.GetStats()

	if clients, ok := stats["wsClients"].(int); ok {
		metrics.UpdateWSClients(clients)
	}
}
