package api

import (
	"net/http"

	"github.com/okian/crowdwatch/internal/domain/session"
)

// SessionsHandler handles SOS and Volunteer triggers and session reads.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type triggerResponse struct {
	SessionID string       `json:"session_id"`
	Mode      session.Mode `json:"mode"`
}

// HandleTrigger handles POST /sos and POST /volunteer requests.
func (h *SessionsHandler) HandleTrigger(mode session.Mode) http.HandlerFunc {
	op := "api.trigger_" + string(mode)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req coordinates
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		fix, err := req.position()
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		id, err := h.deps.Trigger(r.Context(), mode, fix)
		if err != nil {
			writeFailure(w, op, err)
			return
		}
		writeJSON(w, http.StatusAccepted, triggerResponse{SessionID: id, Mode: mode})
	}
}

// HandleSession handles GET and DELETE /session requests.
func (h *SessionsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session"
	switch r.Method {
	case http.MethodGet:
		s, err := h.deps.CurrentSession(r.Context())
		if err != nil {
			writeFailure(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	case http.MethodDelete:
		if err := h.deps.CancelSession(r.Context()); err != nil {
			writeFailure(w, op, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}
