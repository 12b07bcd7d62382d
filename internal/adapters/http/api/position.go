package api

import (
	"errors"
	"net/http"

	"github.com/okian/crowdwatch/internal/domain/model"
)

// PositionHandler accepts device fixes.
type PositionHandler struct {
	deps PositionDependencies
}

// NewPositionHandler creates a new position handler.
func NewPositionHandler(deps PositionDependencies) *PositionHandler {
	return &PositionHandler{deps: deps}
}

// positionRequest mirrors the OpenAPI schema for POST /position.
type positionRequest struct {
	coordinates
	Granted *bool `json:"granted"`
}

// HandleReport handles POST /position requests.
func (h *PositionHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report_position"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	granted := req.Granted == nil || *req.Granted
	fix, err := req.position()
	if err == nil && fix == nil && granted {
		err = errors.New("missing lat and lng")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var pos model.Position
	if fix != nil {
		pos = *fix
	}
	if err := h.deps.ReportPosition(r.Context(), pos, granted); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
