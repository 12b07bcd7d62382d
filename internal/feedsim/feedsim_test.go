package feedsim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/crowdwatch/internal/adapters/realtime"
	"github.com/okian/crowdwatch/internal/domain/ingest"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var venue = model.Position{Lat: 28.6096, Lng: 77.3303}

type flakyPublisher struct {
	mu    sync.Mutex
	paths []string
	fail  bool
}

func (p *flakyPublisher) Publish(_ context.Context, path string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	if p.fail {
		return errors.New("write refused")
	}
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig("hazards", "density", venue)
	cfg.Nodes = 4
	cfg.Interval = time.Millisecond
	cfg.Seed = 42
	return cfg
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		g, err := NewGenerator(testConfig())
		So(err, ShouldBeNil)

		Convey("Then every record normalizes without defects", func() {
			set := ingest.Normalize(g.Snapshot())
			So(len(set.Nodes), ShouldEqual, 4)
			So(set.Malformed, ShouldEqual, 0)
			for _, n := range set.Nodes {
				So(n.Position.DistanceMeters(venue), ShouldBeLessThan, 2000)
				So(n.Attributes.Name, ShouldStartWith, "Zone ")
				So(n.Attributes.Capacity, ShouldNotEqual, model.DefaultCapacity)
			}
		})

		Convey("Then the walk stays within bounds", func() {
			for i := 0; i < 500; i++ {
				g.Step()
			}
			for _, d := range g.Densities() {
				So(d, ShouldBeBetweenOrEqual, 0, DefaultMaxDensity)
			}
		})

		Convey("When a second generator uses the same seed", func() {
			h, err := NewGenerator(testConfig())
			So(err, ShouldBeNil)
			g.Step()
			h.Step()

			Convey("Then the densities match", func() {
				So(h.Densities(), ShouldResemble, g.Densities())
			})
		})

		Convey("When only safe points exist", func() {
			for i := range g.nodes {
				g.nodes[i].density = 0.3
			}
			So(g.Distress(), ShouldEqual, 0)
		})

		Convey("When some points are dangerous", func() {
			g.nodes[0].density = 0.3
			g.nodes[1].density = 0.6
			g.nodes[2].density = 1.54
			g.nodes[3].density = 0.59
			So(g.Distress(), ShouldEqual, 21)
		})
	})

	Convey("Given invalid parameters", t, func() {
		cfg := testConfig()
		cfg.Nodes = 0
		_, err := NewGenerator(cfg)
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)

		cfg = testConfig()
		cfg.Path = ""
		_, err = NewGenerator(cfg)
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
	})
}

func TestRun(t *testing.T) {
	Convey("Given the feed simulator", t, func() {
		_ = logger.Init()
		ctx := context.Background()

		Convey("When running a fixed number of ticks into memory", func() {
			mem := realtime.NewMemory()
			cfg := testConfig()
			cfg.Ticks = 3

			stats, err := Run(ctx, mem, cfg)

			Convey("Then both paths are written every tick", func() {
				So(err, ShouldBeNil)
				So(stats.Ticks, ShouldEqual, 3)
				So(stats.Published, ShouldEqual, 6)
				So(stats.Failed, ShouldEqual, 0)

				v, err := mem.FetchOnce(ctx, "hazards")
				So(err, ShouldBeNil)
				records, ok := v.(map[string]any)
				So(ok, ShouldBeTrue)
				So(len(records), ShouldEqual, 4)

				aux, err := mem.FetchOnce(ctx, "density")
				So(err, ShouldBeNil)
				So(aux, ShouldNotBeNil)
			})
		})

		Convey("When the aux path is empty", func() {
			pub := &flakyPublisher{}
			cfg := testConfig()
			cfg.AuxPath = ""
			cfg.Ticks = 2

			stats, err := Run(ctx, pub, cfg)
			So(err, ShouldBeNil)
			So(stats.Published, ShouldEqual, 2)
			So(pub.paths, ShouldResemble, []string{"hazards", "hazards"})
		})

		Convey("When every publish fails", func() {
			pub := &flakyPublisher{fail: true}
			cfg := testConfig()
			cfg.Ticks = 2

			stats, err := Run(ctx, pub, cfg)

			Convey("Then failures are counted and the run completes", func() {
				So(err, ShouldBeNil)
				So(stats.Ticks, ShouldEqual, 2)
				So(stats.Failed, ShouldEqual, 4)
				So(stats.Published, ShouldEqual, 0)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			cfg := testConfig()
			cfg.Interval = time.Hour

			stats, err := Run(cctx, &flakyPublisher{}, cfg)

			Convey("Then the first snapshot still goes out", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(stats.Ticks, ShouldEqual, 1)
			})
		})

		Convey("When no publisher is given", func() {
			_, err := Run(ctx, nil, testConfig())
			So(err, ShouldEqual, ErrNoPublisher)
		})
	})
}
