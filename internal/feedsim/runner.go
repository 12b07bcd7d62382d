package feedsim

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/crowdwatch/internal/adapters/realtime"
	"github.com/okian/crowdwatch/pkg/logger"
)

// Run publishes a snapshot immediately and then every cfg.Interval until ctx
// is cancelled or cfg.Ticks snapshots have gone out. Publish failures are
// counted and do not stop the run.
func Run(ctx context.Context, pub realtime.Publisher, cfg Config) (Stats, error) {
	if pub == nil {
		return Stats{}, ErrNoPublisher
	}
	gen, err := NewGenerator(cfg)
	if err != nil {
		return Stats{}, err
	}
	log := logger.Get().Named("feedsim")
	stats := Stats{StartTime: time.Now()}
	defer func() {
		stats.EndTime = time.Now()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
	}()

	log.Info(ctx, "starting feed simulation",
		logger.String("path", cfg.Path),
		logger.String("auxPath", cfg.AuxPath),
		logger.Int("nodes", cfg.Nodes),
		logger.Duration("interval", cfg.Interval),
		logger.Int("ticks", cfg.Ticks))

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		publishTick(ctx, pub, gen, cfg, &stats, log)
		if cfg.Ticks > 0 && stats.Ticks >= cfg.Ticks {
			log.Info(ctx, "feed simulation finished",
				logger.Int("published", stats.Published),
				logger.Int("failed", stats.Failed))
			return stats, nil
		}
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-ticker.C:
			gen.Step()
		}
	}
}

func publishTick(ctx context.Context, pub realtime.Publisher, gen *Generator, cfg Config, stats *Stats, log logger.Logger) {
	stats.Ticks++
	if err := pub.Publish(ctx, cfg.Path, gen.Snapshot()); err != nil {
		stats.Failed++
		log.Warn(ctx, "publish snapshot failed", logger.Error(fmt.Errorf("tick %d: %w", stats.Ticks, err)))
	} else {
		stats.Published++
	}
	if cfg.AuxPath == "" {
		return
	}
	distress := gen.Distress()
	if err := pub.Publish(ctx, cfg.AuxPath, distress); err != nil {
		stats.Failed++
		log.Warn(ctx, "publish distress metric failed", logger.Error(err))
		return
	}
	stats.Published++
	if cfg.Verbose {
		log.Debug(ctx, "snapshot published",
			logger.Int("tick", stats.Ticks),
			logger.Int("distress", distress))
	}
}
