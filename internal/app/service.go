// Package service owns the crowdwatch core. It wires the main loop, the
// realtime ingest, the annotation table, sessions, ripples and the map
// surface, and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crowdwatch/internal/adapters/geocoder"
	"github.com/okian/crowdwatch/internal/adapters/http/ws"
	"github.com/okian/crowdwatch/internal/adapters/mapsurface"
	"github.com/okian/crowdwatch/internal/adapters/mq/queue"
	"github.com/okian/crowdwatch/internal/adapters/mq/worker"
	"github.com/okian/crowdwatch/internal/adapters/position"
	"github.com/okian/crowdwatch/internal/adapters/realtime"
	"github.com/okian/crowdwatch/internal/domain/ingest"
	"github.com/okian/crowdwatch/internal/domain/locate"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/reconcile"
	"github.com/okian/crowdwatch/internal/domain/ripple"
	"github.com/okian/crowdwatch/internal/domain/session"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

// DefaultFeedPath is the realtime path the hazard feed is read from.
const DefaultFeedPath = "disaster"

const (
	searchAnnotationID = "search"
	searchIcon         = "search"
	noticeNotFound     = "Location not found: "

	shutdownTimeout = 5 * time.Second
)

// Service implements the API dependencies for crowdwatch.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	source   ingest.Source
	geocoder locate.Geocoder

	// Core components
	queue     *queue.InMemoryQueue
	loop      *worker.Loop
	hub       *ws.Hub
	scene     *mapsurface.Scene
	table     *reconcile.Table
	ingestor  *ingest.Ingestor
	resolver  *locate.Resolver
	ripples   *ripple.Scheduler
	sessions  *session.Manager
	positions *position.Latest

	// Configuration
	queueSize       int
	feedPath        string
	auxMetricPath   string
	defaultCenter   model.Position
	defaultZoom     float64
	sessionZoom     float64
	hazardRadius    float64
	geocodeTimeout  time.Duration
	positionTimeout time.Duration
	positionMaxAge  time.Duration
	ripplePulses    int
	rippleSteps     int
	rippleStep      float64
	rippleDelay     time.Duration
	wsBuffer        int

	// State
	started   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	ingestEnd context.CancelFunc
	wg        sync.WaitGroup
	snapshots atomic.Uint64
	lastSeq   atomic.Uint64

	// Logging
	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:       1024,
		feedPath:        DefaultFeedPath,
		auxMetricPath:   session.DefaultAuxMetricPath,
		defaultCenter:   model.Position{Lat: 28.6096, Lng: 77.3303},
		defaultZoom:     13,
		sessionZoom:     session.DefaultZoom,
		geocodeTimeout:  10 * time.Second,
		positionTimeout: 10 * time.Second,
		positionMaxAge:  5 * time.Minute,
		ripplePulses:    3,
		rippleSteps:     30,
		rippleStep:      20,
		rippleDelay:     30 * time.Millisecond,
		wsBuffer:        256,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and starts the loop, the hub and the ingest.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.source == nil {
		s.source = realtime.NewMemory()
	}
	if s.geocoder == nil {
		s.geocoder = geocoder.Unavailable{}
	}

	s.logger.Info(ctx, "starting crowdwatch service...")

	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.hub = ws.NewHub(ws.WithClientBuffer(s.wsBuffer))
	s.scene = mapsurface.NewScene(mapsurface.WithBroadcaster(s.hub))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.loop = worker.NewLoop(s.queue, worker.WithName("main"))
	s.table = reconcile.NewTable(s.scene, reconcile.WithHazardRadius(s.hazardRadius))
	s.ingestor = ingest.NewIngestor(s.source)
	s.resolver = locate.NewResolver(s.geocoder, s.loop, locate.WithTimeout(s.geocodeTimeout))
	s.ripples = ripple.NewScheduler(s.loop, s.scene,
		ripple.WithPulses(s.ripplePulses),
		ripple.WithSteps(s.rippleSteps),
		ripple.WithRadiusStep(s.rippleStep),
		ripple.WithStepDelay(s.rippleDelay),
	)
	s.positions = position.NewLatest(position.WithMaxAge(s.positionMaxAge))
	s.sessions = session.NewManager(session.Deps{
		Poster:      s.loop,
		Position:    s.positions,
		Namer:       s.resolver,
		Metrics:     s.ingestor,
		Annotations: s.table,
		Ripple:      s.ripples,
		Camera:      s.scene,
		Notifier:    s.hub,
		OnTransition: func(_ context.Context, snap session.Session, _ session.Transition) {
			s.hub.Broadcast("session", snap)
		},
	},
		session.WithAuxMetricPath(s.auxMetricPath),
		session.WithZoom(s.sessionZoom),
		session.WithPositionTimeout(s.positionTimeout),
	)
	metrics.UpdateQueueCapacity(s.queue.Cap())

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.loop.Run(s.runCtx)
	}()

	center, zoom := s.defaultCenter, s.defaultZoom
	if err := s.loop.Post(ctx, func(c context.Context) {
		if err := s.scene.MoveCamera(c, center, zoom); err != nil {
			s.logger.Warn(c, "initial camera move failed", logger.Error(err))
		}
	}); err != nil {
		s.cancel()
		return fmt.Errorf("start: %w", err)
	}

	ingestCtx, ingestEnd := context.WithCancel(s.runCtx)
	s.ingestEnd = ingestEnd
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ingestCtx)
	}()

	s.started = true
	s.logger.Info(ctx, "crowdwatch service started",
		logger.Int("queueSize", s.queueSize),
		logger.String("feedPath", s.feedPath),
		logger.String("auxMetricPath", s.auxMetricPath),
	)
	return nil
}

// consume applies every snapshot on the loop in receipt order.
func (s *Service) consume(ctx context.Context) {
	for set := range s.ingestor.Subscribe(ctx, s.feedPath) {
		s.snapshots.Add(1)
		s.lastSeq.Store(set.Seq)
		err := s.loop.Post(ctx, func(c context.Context) {
			diff, err := s.table.Apply(c, set)
			if err != nil {
				metrics.RecordErrorByComponent("reconcile", "render")
				s.logger.Warn(c, "snapshot applied with render failures",
					logger.Uint64("seq", set.Seq), logger.Error(err))
			}
			if !diff.Empty() {
				s.logger.Debug(c, "snapshot applied",
					logger.Uint64("seq", set.Seq),
					logger.Int("added", len(diff.ToAdd)),
					logger.Int("updated", len(diff.ToUpdate)),
					logger.Int("removed", len(diff.ToRemove)),
				)
			}
		})
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error(ctx, "snapshot not delivered to loop", logger.Error(err))
			}
			return
		}
		metrics.UpdateQueueSize(s.queue.Len(ctx))
	}
}

// Stop stops the ingest, drains the loop and closes the hub.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping crowdwatch service...")

	s.ingestEnd()
	sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.loop.Shutdown(sctx); err != nil {
		s.logger.Warn(ctx, "loop shutdown incomplete", logger.Error(err))
	}
	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info(ctx, "crowdwatch service stopped")
}

// Hub returns the WebSocket hub.
func (s *Service) Hub() *ws.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

// Scene returns the map surface.
func (s *Service) Scene() *mapsurface.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scene
}

// Trigger starts an SOS or Volunteer session. A non-nil fix is reported
// as the device position first.
func (s *Service) Trigger(ctx context.Context, mode session.Mode, fix *model.Position) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if fix != nil {
		if err := s.positions.Report(*fix); err != nil {
			return "", err
		}
	}
	var id string
	var terr error
	if err := s.loop.Call(ctx, func(c context.Context) {
		id, terr = s.sessions.Trigger(c, mode)
	}); err != nil {
		return "", fmt.Errorf("trigger %s: %w", mode, err)
	}
	return id, terr
}

// ReportPosition records a device fix and the permission gate.
func (s *Service) ReportPosition(_ context.Context, pos model.Position, granted bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.positions.SetPermission(granted)
	if !granted {
		return nil
	}
	return s.positions.Report(pos)
}

// CurrentSession returns a snapshot of the latest session.
func (s *Service) CurrentSession(ctx context.Context) (session.Session, error) {
	if err := s.ready(); err != nil {
		return session.Session{}, err
	}
	var snap session.Session
	var serr error
	if err := s.loop.Call(ctx, func(context.Context) {
		snap, serr = s.sessions.Current()
	}); err != nil {
		return session.Session{}, err
	}
	return snap, serr
}

// CancelSession ends the active session.
func (s *Service) CancelSession(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	var cerr error
	if err := s.loop.Call(ctx, func(c context.Context) {
		cerr = s.sessions.Cancel(c)
	}); err != nil {
		return err
	}
	return cerr
}

// Search issues a forward lookup and returns its sequence number. The
// result is applied asynchronously unless a newer search supersedes it.
func (s *Service) Search(_ context.Context, query string) (uint64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, ErrEmptyQuery
	}
	return s.resolver.Search(s.runCtx, query, s.applySearch), nil
}

// applySearch runs on the loop for the latest search only.
func (s *Service) applySearch(ctx context.Context, res locate.Result) {
	if res.Err != nil {
		if !errors.Is(res.Err, context.Canceled) {
			s.hub.Notify(ctx, noticeNotFound+res.Query)
		}
		return
	}
	if err := s.scene.MoveCamera(ctx, res.Place.Position, s.sessionZoom); err != nil {
		s.logger.Warn(ctx, "camera move failed", logger.Error(err))
	}
	if err := s.table.PutTransient(ctx, model.TransientNode{
		ID:       searchAnnotationID,
		Position: res.Place.Position,
		Title:    res.Place.DisplayName,
		Icon:     searchIcon,
		Kind:     model.KindSearch,
	}); err != nil {
		s.logger.Warn(ctx, "search marker failed", logger.Error(err))
	}
}

// Reverse returns the display name at pos.
func (s *Service) Reverse(ctx context.Context, pos model.Position) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if err := position.Validate(pos); err != nil {
		return "", err
	}
	return s.resolver.ResolveReverse(ctx, pos), nil
}

// Annotations returns every annotation row.
func (s *Service) Annotations(ctx context.Context) ([]model.Annotation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []model.Annotation
	if err := s.loop.Call(ctx, func(context.Context) { rows = s.table.Annotations() }); err != nil {
		return nil, err
	}
	return rows, nil
}

// Annotation returns the tap info of one annotation.
func (s *Service) Annotation(ctx context.Context, id string) (reconcile.Info, error) {
	if err := s.ready(); err != nil {
		return reconcile.Info{}, err
	}
	var info reconcile.Info
	var lerr error
	if err := s.loop.Call(ctx, func(context.Context) { info, lerr = s.table.Lookup(id) }); err != nil {
		return reconcile.Info{}, err
	}
	return info, lerr
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"queueSize":     s.queueSize,
		"feedPath":      s.feedPath,
		"auxMetricPath": s.auxMetricPath,
	}
	if s.started {
		queueLen := s.queue.Len(context.Background())
		markers, circles := s.scene.Counts()
		stats["queueLength"] = queueLen
		stats["snapshots"] = s.snapshots.Load()
		stats["lastSnapshotSeq"] = s.lastSeq.Load()
		stats["searchSeq"] = s.resolver.Current()
		stats["markers"] = markers
		stats["circles"] = circles
		stats["wsClients"] = s.hub.Clients()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateQueueUtilization(float64(queueLen) / float64(s.queue.Cap()))
	}
	return stats
}

// SceneSnapshot returns the live map scene.
func (s *Service) SceneSnapshot(context.Context) (mapsurface.Snapshot, error) {
	if err := s.ready(); err != nil {
		return mapsurface.Snapshot{}, err
	}
	return s.scene.Snapshot(), nil
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}
