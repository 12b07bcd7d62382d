// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/crowdwatch/internal/adapters/mapsurface"
	"github.com/okian/crowdwatch/internal/adapters/mq/queue"
	"github.com/okian/crowdwatch/internal/adapters/mq/worker"
	"github.com/okian/crowdwatch/internal/adapters/position"
	"github.com/okian/crowdwatch/internal/domain/model"
	"github.com/okian/crowdwatch/internal/domain/reconcile"
	"github.com/okian/crowdwatch/internal/domain/session"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	PositionDependencies
	SearchDependencies
	AnnotationDependencies
	SceneDependencies
}

// SessionDependencies drive alert sessions.
type SessionDependencies interface {
	Trigger(ctx context.Context, mode session.Mode, fix *model.Position) (string, error)
	CurrentSession(ctx context.Context) (session.Session, error)
	CancelSession(ctx context.Context) error
}

// PositionDependencies accept device fixes.
type PositionDependencies interface {
	ReportPosition(ctx context.Context, pos model.Position, granted bool) error
}

// SearchDependencies resolve places.
type SearchDependencies interface {
	Search(ctx context.Context, query string) (uint64, error)
	Reverse(ctx context.Context, pos model.Position) (string, error)
}

// AnnotationDependencies expose the rendered annotations.
type AnnotationDependencies interface {
	Annotations(ctx context.Context) ([]model.Annotation, error)
	Annotation(ctx context.Context, id string) (reconcile.Info, error)
}

// SceneDependencies expose the map scene.
type SceneDependencies interface {
	SceneSnapshot(ctx context.Context) (mapsurface.Snapshot, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	sessionsHandler   *SessionsHandler
	positionHandler   *PositionHandler
	searchHandler     *SearchHandler
	annotationHandler *AnnotationsHandler
	sceneHandler      *SceneHandler
	stream            http.Handler
}

// NewServer creates a new API server with all handlers. stream serves the
// WebSocket endpoint and may be nil.
func NewServer(deps Dependencies, statsProvider StatsProvider, stream http.Handler) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		sessionsHandler:   NewSessionsHandler(deps),
		positionHandler:   NewPositionHandler(deps),
		searchHandler:     NewSearchHandler(deps),
		annotationHandler: NewAnnotationsHandler(deps),
		sceneHandler:      NewSceneHandler(deps),
		stream:            stream,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", Instrument("healthz", s.healthHandler.HandleHealth))
	mux.HandleFunc("/stats", Instrument("stats", s.statsHandler.HandleStats))
	mux.HandleFunc("/sos", Instrument("sos", s.sessionsHandler.HandleTrigger(session.ModeSOS)))
	mux.HandleFunc("/volunteer", Instrument("volunteer", s.sessionsHandler.HandleTrigger(session.ModeVolunteer)))
	mux.HandleFunc("/session", Instrument("session", s.sessionsHandler.HandleSession))
	mux.HandleFunc("/position", Instrument("position", s.positionHandler.HandleReport))
	mux.HandleFunc("/search", Instrument("search", s.searchHandler.HandleSearch))
	mux.HandleFunc("/reverse", Instrument("reverse", s.searchHandler.HandleReverse))
	mux.HandleFunc("/annotations", Instrument("annotations", s.annotationHandler.HandleList))
	mux.HandleFunc("/annotations/", Instrument("annotation", s.annotationHandler.HandleGet))
	mux.HandleFunc("/scene", Instrument("scene", s.sceneHandler.HandleScene))
	mux.HandleFunc("/scene.geojson", Instrument("scene_geojson", s.sceneHandler.HandleGeoJSON))
	if s.stream != nil {
		mux.Handle("/ws", s.stream)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a domain error to a status code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, session.ErrInvalidMode),
		errors.Is(err, position.ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, model.ErrNotFound), errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, worker.ErrStopped),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
