package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/ripple"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// Defaults for a Manager.
const (
	DefaultAuxMetricPath   = "density/densityHuman"
	DefaultZoom            = 15
	defaultPositionTimeout = 10 * time.Second
	defaultAuxTimeout      = 10 * time.Second

	transientPrefix = "session:"
)

// User-facing notices.
const (
	NoticeLocationUnavailable = "Unable to fetch location"
	NoticePermissionRequired  = "Location permission required"
	noticeCurrentLocation     = "Current Location: "
	titleYouAreHere           = "You are here: "
)

// Manager owns the single active session. All methods except the
// background workers it spawns run on the main loop.
type Manager struct {
	deps            Deps
	auxPath         string
	zoom            float64
	positionTimeout time.Duration
	auxTimeout      time.Duration
	now             func() time.Time
	logger          logger.Logger

	// Loop-owned.
	current *run
}

// run is the loop-owned bookkeeping for one session.
type run struct {
	s         Session
	ctx       context.Context
	cancel    context.CancelFunc
	ripple    *ripple.Handle
	transient string
}

// NewManager creates a Manager. Deps.Poster, Position, Namer and
// Annotations are required; the rest may be nil.
func NewManager(deps Deps, opts ...Option) *Manager {
	m := &Manager{
		deps:            deps,
		auxPath:         DefaultAuxMetricPath,
		zoom:            DefaultZoom,
		positionTimeout: defaultPositionTimeout,
		auxTimeout:      defaultAuxTimeout,
		now:             time.Now,
		logger:          logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Trigger cancels the active session, if any, and starts a new one in mode.
// It returns the new session id.
func (m *Manager) Trigger(ctx context.Context, mode Mode) (string, error) {
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if m.current != nil && m.current.s.Active() {
		m.cancelRun(ctx, m.current, "superseded")
	}

	rctx, cancel := context.WithCancel(context.Background())
	r := &run{
		s: Session{
			ID:        uuid.NewString(),
			Mode:      mode,
			State:     StateIdle,
			StartedAt: m.now(),
		},
		ctx:    rctx,
		cancel: cancel,
	}
	m.current = r
	m.transition(ctx, r, StateResolvingPosition, "triggered")

	go m.resolve(r)
	return r.s.ID, nil
}

// Current returns a snapshot of the latest session.
func (m *Manager) Current() (Session, error) {
	if m.current == nil {
		return Session{}, ErrNoSession
	}
	return m.current.s.clone(), nil
}

// Cancel ends the active session without starting a new one.
func (m *Manager) Cancel(ctx context.Context) error {
	if m.current == nil || !m.current.s.Active() {
		return ErrNoSession
	}
	m.cancelRun(ctx, m.current, "canceled")
	return nil
}

// resolve obtains the device position and its name off the loop.
func (m *Manager) resolve(r *run) {
	pctx, cancel := context.WithTimeout(r.ctx, m.positionTimeout)
	defer cancel()

	pos, ok, err := m.deps.Position.LastKnownPosition(pctx)
	if err == nil && !ok {
		err = model.ErrResolutionFailed
	}
	var name string
	if err == nil {
		name = m.deps.Namer.ResolveReverse(r.ctx, pos)
	}
	if r.ctx.Err() != nil {
		return
	}
	m.post(r, func(ctx context.Context) {
		m.onPosition(ctx, r, pos, name, err)
	})
}

func (m *Manager) onPosition(ctx context.Context, r *run, pos model.Position, name string, err error) {
	if !m.owns(r, StateResolvingPosition) {
		metrics.RecordStaleResult()
		return
	}
	if err != nil {
		m.fail(ctx, r, err)
		return
	}

	r.s.Origin = &pos
	r.s.PlaceName = name
	if m.deps.Camera != nil {
		if cerr := m.deps.Camera.MoveCamera(ctx, pos, m.zoom); cerr != nil {
			m.logger.Warn(ctx, "camera move failed", logger.Error(cerr))
		}
	}
	m.notify(ctx, noticeCurrentLocation+name)

	if r.s.Mode != ModeSOS {
		m.display(ctx, r)
		return
	}
	m.transition(ctx, r, StateBroadcasting, "position resolved")
	go m.fetchAux(r)
}

// fetchAux reads the distress density metric off the loop.
func (m *Manager) fetchAux(r *run) {
	v, err := 0, error(nil)
	if m.deps.Metrics != nil {
		actx, cancel := context.WithTimeout(r.ctx, m.auxTimeout)
		v, err = m.deps.Metrics.FetchOnce(actx, m.auxPath)
		cancel()
	}
	if r.ctx.Err() != nil {
		return
	}
	m.post(r, func(ctx context.Context) {
		m.onAux(ctx, r, v, err)
	})
}

func (m *Manager) onAux(ctx context.Context, r *run, v int, err error) {
	if !m.owns(r, StateBroadcasting) {
		metrics.RecordStaleResult()
		return
	}
	if err != nil {
		m.logger.Warn(ctx, "aux metric unavailable",
			logger.String("session", r.s.ID),
			logger.String("path", m.auxPath),
			logger.Error(err))
		metrics.RecordAuxFetchFailure()
		v = 0
	}
	r.s.AuxMetric = &v
	m.display(ctx, r)
}

func (m *Manager) display(ctx context.Context, r *run) {
	kind := model.KindVolunteer
	icon := string(ModeVolunteer)
	if r.s.Mode == ModeSOS {
		kind = model.KindSOS
		icon = string(ModeSOS)
	}
	id := transientPrefix + r.s.ID
	err := m.deps.Annotations.PutTransient(ctx, model.TransientNode{
		ID:        id,
		Position:  *r.s.Origin,
		Title:     titleYouAreHere + r.s.PlaceName,
		Icon:      icon,
		Kind:      kind,
		AuxMetric: r.s.AuxMetric,
	})
	if err != nil {
		m.logger.Error(ctx, "session marker failed",
			logger.String("session", r.s.ID), logger.Error(err))
	} else {
		r.transient = id
	}
	if r.s.Mode == ModeSOS && m.deps.Ripple != nil {
		r.ripple = m.deps.Ripple.Start(ctx, *r.s.Origin)
	}
	m.transition(ctx, r, StateDisplayed, "")
	metrics.RecordSessionOutcome(string(r.s.Mode), "displayed")
}

func (m *Manager) fail(ctx context.Context, r *run, err error) {
	notice, kind := NoticeLocationUnavailable, "unavailable"
	if errors.Is(err, model.ErrPermissionDenied) {
		notice, kind = NoticePermissionRequired, "permission_denied"
	}
	m.logger.Warn(ctx, "position unavailable",
		logger.String("session", r.s.ID),
		logger.String("kind", kind),
		logger.Error(err))
	metrics.RecordPositionFailure(kind)

	r.s.Failure = err.Error()
	r.cancel()
	m.notify(ctx, notice)
	m.transition(ctx, r, StateIdle, kind)
	metrics.RecordSessionOutcome(string(r.s.Mode), "failed")
}

// cancelRun stops r and undoes everything it rendered.
func (m *Manager) cancelRun(ctx context.Context, r *run, reason string) {
	r.cancel()
	if r.ripple != nil && m.deps.Ripple != nil {
		m.deps.Ripple.Cancel(ctx, r.ripple)
		r.ripple = nil
	}
	if r.transient != "" {
		if err := m.deps.Annotations.RemoveTransient(ctx, r.transient); err != nil &&
			!errors.Is(err, model.ErrNotFound) {
			m.logger.Warn(ctx, "session marker removal failed",
				logger.String("session", r.s.ID), logger.Error(err))
		}
		r.transient = ""
	}
	m.transition(ctx, r, StateCancelled, reason)
	metrics.RecordSessionOutcome(string(r.s.Mode), "cancelled")
}

// owns reports whether r is still current and in the expected state.
func (m *Manager) owns(r *run, want State) bool {
	return m.current == r && r.s.State == want && r.ctx.Err() == nil
}

func (m *Manager) transition(ctx context.Context, r *run, to State, reason string) {
	t := Transition{From: r.s.State, To: to, At: m.now(), Reason: reason}
	r.s.State = to
	r.s.History = append(r.s.History, t)
	metrics.RecordSessionTransition(string(r.s.Mode), string(to))
	m.logger.Debug(ctx, "session transition",
		logger.String("session", r.s.ID),
		logger.String("mode", string(r.s.Mode)),
		logger.String("from", string(t.From)),
		logger.String("to", string(t.To)))
	if m.deps.OnTransition != nil {
		m.deps.OnTransition(ctx, r.s.clone(), t)
	}
}

func (m *Manager) notify(ctx context.Context, msg string) {
	if m.deps.Notifier != nil {
		m.deps.Notifier.Notify(ctx, msg)
	}
}

func (m *Manager) post(r *run, fn func(context.Context)) {
	if err := m.deps.Poster.Post(r.ctx, fn); err != nil && r.ctx.Err() == nil {
		m.logger.Warn(r.ctx, "session result dropped",
			logger.String("session", r.s.ID), logger.Error(err))
	}
}

func (s Session) clone() Session {
	c := s
	if s.Origin != nil {
		p := *s.Origin
		c.Origin = &p
	}
	if s.AuxMetric != nil {
		v := *s.AuxMetric
		c.AuxMetric = &v
	}
	c.History = append([]Transition(nil), s.History...)
	return c
}
