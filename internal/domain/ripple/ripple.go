// Package ripple draws the expanding distress rings around an SOS origin.
//
// A background goroutine paces the animation and posts each frame to the
// main loop. Frames check the handle's canceled flag on the loop before
// touching the surface, so a canceled ripple has no further effect.
package ripple

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/surface"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// Default animation parameters.
const (
	defaultPulses     = 3
	defaultSteps      = 30
	defaultRadiusStep = 20
	defaultStepDelay  = 30 * time.Millisecond

	ringStartRadius = 1
	ringStrokeWidth = 5
	cleanupTimeout  = time.Second
)

// Ring colors.
var (
	RingStroke    = model.ARGB(255, 255, 0, 0)
	RingStartFill = model.ARGB(100, 255, 144, 30)
)

// Poster hands a task to the main loop.
type Poster interface {
	Post(ctx context.Context, fn func(context.Context)) error
}

// Handle tracks one running ripple.
type Handle struct {
	origin model.Position
	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned.
	canceled bool
	ring     surface.Handle

	completed atomic.Int32
	done      chan struct{}
	doneOnce  sync.Once
}

// Done is closed when the ripple finishes or is canceled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Completed returns the number of pulses that ran to the end.
func (h *Handle) Completed() int { return int(h.completed.Load()) }

// Origin returns the ripple center.
func (h *Handle) Origin() model.Position { return h.origin }

func (h *Handle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}

// Scheduler starts and cancels ripples. Start and Cancel must run on the main loop.
type Scheduler struct {
	poster     Poster
	surface    surface.Surface
	pulses     int
	steps      int
	radiusStep float64
	delay      time.Duration
	current    *Handle
	logger     logger.Logger
}

// NewScheduler creates a scheduler rendering on s and pacing through p.
func NewScheduler(p Poster, s surface.Surface, opts ...Option) *Scheduler {
	sc := &Scheduler{
		poster:     p,
		surface:    s,
		pulses:     defaultPulses,
		steps:      defaultSteps,
		radiusStep: defaultRadiusStep,
		delay:      defaultStepDelay,
		logger:     logger.Get().Named("ripple"),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Start cancels any running ripple and begins a new one at origin.
func (s *Scheduler) Start(ctx context.Context, origin model.Position) *Handle {
	if s.current != nil {
		s.Cancel(ctx, s.current)
	}
	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		origin: origin,
		ctx:    hctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.current = h
	go s.run(h)
	return h
}

// Cancel stops h at the current step and removes its ring immediately.
func (s *Scheduler) Cancel(ctx context.Context, h *Handle) {
	if h == nil || h.canceled {
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	h.canceled = true
	h.cancel()
	if h.ring != "" {
		if err := s.surface.Remove(ctx, h.ring); err != nil {
			s.logger.Warn(ctx, "ring removal failed", logger.Error(err))
		}
		h.ring = ""
	}
	if s.current == h {
		s.current = nil
	}
	metrics.RecordRippleCanceled()
	h.finish()
}

// Current returns the running ripple, or nil.
func (s *Scheduler) Current() *Handle { return s.current }

// run paces the animation off the loop.
func (s *Scheduler) run(h *Handle) {
	defer h.cancel()
	if !s.animate(h) {
		s.abandon(h)
	}
}

// animate posts every frame. It returns false if h's context ended first.
func (s *Scheduler) animate(h *Handle) bool {
	for p := 0; p < s.pulses; p++ {
		if !s.post(h, func(ctx context.Context) { s.beginPulse(ctx, h) }) {
			return false
		}
		for r := 1; r <= s.steps; r++ {
			step := r
			if !s.post(h, func(ctx context.Context) { s.advance(ctx, h, step) }) {
				return false
			}
			if !sleep(h.ctx, s.delay) {
				return false
			}
		}
		last := p == s.pulses-1
		if !s.post(h, func(ctx context.Context) { s.endPulse(ctx, h, last) }) {
			return false
		}
	}
	return true
}

// abandon removes the ring of a ripple whose parent context ended mid-pulse.
// A ripple stopped through Cancel is already clean.
func (s *Scheduler) abandon(h *Handle) {
	defer h.finish()
	select {
	case <-h.done:
		return
	default:
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), cleanupTimeout)
	defer cancel()
	err := s.poster.Post(ctx, func(loopCtx context.Context) {
		if h.canceled {
			return
		}
		h.canceled = true
		if h.ring != "" {
			if err := s.surface.Remove(loopCtx, h.ring); err != nil {
				s.logger.Warn(loopCtx, "ring removal failed", logger.Error(err))
			}
			h.ring = ""
		}
		if s.current == h {
			s.current = nil
		}
	})
	if err != nil {
		s.logger.Warn(ctx, "ring cleanup not scheduled", logger.Error(err))
	}
}

func (s *Scheduler) post(h *Handle, fn func(context.Context)) bool {
	if h.ctx.Err() != nil {
		return false
	}
	if err := s.poster.Post(h.ctx, fn); err != nil {
		// Loop gone or ripple canceled; nothing more will render.
		return false
	}
	return true
}

func (s *Scheduler) beginPulse(ctx context.Context, h *Handle) {
	if h.canceled {
		return
	}
	ring, err := s.surface.AddCircle(ctx, surface.CircleOptions{
		Center:      h.origin,
		Radius:      ringStartRadius,
		StrokeColor: RingStroke,
		StrokeWidth: ringStrokeWidth,
		FillColor:   RingStartFill,
	})
	if err != nil {
		s.logger.Warn(ctx, "ring creation failed", logger.Error(err))
		return
	}
	h.ring = ring
}

func (s *Scheduler) advance(ctx context.Context, h *Handle, step int) {
	if h.canceled || h.ring == "" {
		return
	}
	if err := s.surface.UpdateCircle(ctx, h.ring, surface.CircleUpdate{
		Center:      h.origin,
		Radius:      float64(step) * s.radiusStep,
		StrokeColor: RingStroke,
		FillColor:   fadedFill(step, s.steps),
	}); err != nil {
		s.logger.Warn(ctx, "ring update failed", logger.Int("step", step), logger.Error(err))
	}
}

func (s *Scheduler) endPulse(ctx context.Context, h *Handle, last bool) {
	if h.canceled {
		return
	}
	if h.ring != "" {
		if err := s.surface.Remove(ctx, h.ring); err != nil {
			s.logger.Warn(ctx, "ring removal failed", logger.Error(err))
		}
		h.ring = ""
	}
	h.completed.Add(1)
	metrics.RecordRipplePulse()
	if last {
		if s.current == h {
			s.current = nil
		}
		h.finish()
	}
}

// fadedFill returns the ring fill at step, red fading linearly to transparent.
func fadedFill(step, steps int) model.Color {
	factor := 1 - float64(step)/float64(steps)
	if factor < 0 {
		factor = 0
	}
	return RingStroke.WithAlpha(uint8(float64(RingStroke.Alpha()) * factor))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
