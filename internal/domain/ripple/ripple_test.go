package ripple_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/crowdwatch/internal/adapters/mq/queue"
	"github.com/okian/crowdwatch/internal/adapters/mq/worker"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/ripple"
	"github.com/okian/crowdwatch/internal/domain/surface"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type ringSurface struct {
	mu    sync.Mutex
	next  int
	live  map[surface.Handle]bool
	ops   []string
	fills []model.Color
}

func newRingSurface() *ringSurface {
	return &ringSurface{live: make(map[surface.Handle]bool)}
}

func (s *ringSurface) AddMarker(context.Context, surface.MarkerOptions) (surface.Handle, error) {
	return "", nil
}

func (s *ringSurface) AddCircle(_ context.Context, o surface.CircleOptions) (surface.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := surface.Handle(fmt.Sprintf("ring-%d", s.next))
	s.live[h] = true
	s.ops = append(s.ops, fmt.Sprintf("add r=%g", o.Radius))
	return h, nil
}

func (s *ringSurface) UpdateMarker(context.Context, surface.Handle, surface.MarkerUpdate) error {
	return nil
}

func (s *ringSurface) UpdateCircle(_ context.Context, _ surface.Handle, u surface.CircleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, fmt.Sprintf("update r=%g", u.Radius))
	s.fills = append(s.fills, u.FillColor)
	return nil
}

func (s *ringSurface) Remove(_ context.Context, h surface.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, h)
	s.ops = append(s.ops, "remove")
	return nil
}

func (s *ringSurface) MoveCamera(context.Context, model.Position, float64) error { return nil }

func (s *ringSurface) liveRings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *ringSurface) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func TestScheduler(t *testing.T) {
	convey.Convey("Given a scheduler on a running loop", t, func() {
		_ = logger.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		loop := worker.NewLoop(queue.NewInMemoryQueue(queue.WithCapacity(64)))
		go loop.Run(ctx)

		s := newRingSurface()
		sched := ripple.NewScheduler(loop, s,
			ripple.WithPulses(2),
			ripple.WithSteps(3),
			ripple.WithRadiusStep(20),
			ripple.WithStepDelay(time.Millisecond),
		)
		origin := model.Position{Lat: 28.6, Lng: 77.3}

		convey.Convey("When a ripple runs to completion", func() {
			var h *ripple.Handle
			_ = loop.Call(ctx, func(c context.Context) { h = sched.Start(c, origin) })
			<-h.Done()
			_ = loop.Call(ctx, func(context.Context) {})

			convey.Convey("Then each pulse grows and is removed", func() {
				convey.So(h.Completed(), convey.ShouldEqual, 2)
				convey.So(s.snapshot(), convey.ShouldResemble, []string{
					"add r=1", "update r=20", "update r=40", "update r=60", "remove",
					"add r=1", "update r=20", "update r=40", "update r=60", "remove",
				})
				convey.So(s.liveRings(), convey.ShouldEqual, 0)
			})

			convey.Convey("And the fill fades to transparent red", func() {
				convey.So(s.fills[0], convey.ShouldEqual, ripple.RingStroke.WithAlpha(170))
				convey.So(s.fills[2], convey.ShouldEqual, ripple.RingStroke.WithAlpha(0))
			})
		})

		convey.Convey("When a ripple is canceled right after it starts", func() {
			var h *ripple.Handle
			_ = loop.Call(ctx, func(c context.Context) {
				h = sched.Start(c, origin)
				sched.Cancel(c, h)
			})
			<-h.Done()
			time.Sleep(10 * time.Millisecond)
			_ = loop.Call(ctx, func(context.Context) {})

			convey.Convey("Then no pulse completes and no ring lingers", func() {
				convey.So(h.Completed(), convey.ShouldEqual, 0)
				convey.So(s.liveRings(), convey.ShouldEqual, 0)
				convey.So(sched.Current(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a ripple is canceled mid-pulse", func() {
			slow := ripple.NewScheduler(loop, s, ripple.WithStepDelay(5*time.Millisecond))
			var h *ripple.Handle
			_ = loop.Call(ctx, func(c context.Context) { h = slow.Start(c, origin) })
			time.Sleep(20 * time.Millisecond)
			_ = loop.Call(ctx, func(c context.Context) { slow.Cancel(c, h) })
			opsAtCancel := len(s.snapshot())
			time.Sleep(20 * time.Millisecond)
			_ = loop.Call(ctx, func(context.Context) {})

			convey.Convey("Then the ring is removed and nothing renders afterwards", func() {
				convey.So(s.liveRings(), convey.ShouldEqual, 0)
				convey.So(len(s.snapshot()), convey.ShouldEqual, opsAtCancel)
				convey.So(h.Completed(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the context a ripple was started with ends mid-pulse", func() {
			slow := ripple.NewScheduler(loop, s, ripple.WithStepDelay(5*time.Millisecond))
			parent, stop := context.WithCancel(ctx)
			var h *ripple.Handle
			_ = loop.Call(ctx, func(context.Context) { h = slow.Start(parent, origin) })
			time.Sleep(20 * time.Millisecond)
			stop()

			convey.Convey("Then the handle finishes and its ring is removed", func() {
				select {
				case <-h.Done():
				case <-time.After(2 * time.Second):
					convey.So("ripple done", convey.ShouldEqual, "timed out")
				}
				_ = loop.Call(ctx, func(context.Context) {})
				convey.So(s.liveRings(), convey.ShouldEqual, 0)
				convey.So(h.Completed(), convey.ShouldEqual, 0)
				var current *ripple.Handle
				_ = loop.Call(ctx, func(context.Context) { current = slow.Current() })
				convey.So(current, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a second ripple starts", func() {
			var first, second *ripple.Handle
			_ = loop.Call(ctx, func(c context.Context) {
				first = sched.Start(c, origin)
				second = sched.Start(c, model.Position{Lat: 1, Lng: 1})
			})
			<-first.Done()

			convey.Convey("Then the first is canceled and the second becomes current", func() {
				convey.So(first.Completed(), convey.ShouldEqual, 0)
				var current *ripple.Handle
				_ = loop.Call(ctx, func(context.Context) { current = sched.Current() })
				if current != nil {
					convey.So(current, convey.ShouldEqual, second)
				}
				<-second.Done()
			})
		})
	})
}
