package api

import (
	"net/http"
	"strings"

	"github.com/okian/crowdwatch/internal/adapters/mapsurface"
)

// AnnotationsHandler exposes the annotation table.
type AnnotationsHandler struct {
	deps AnnotationDependencies
}

// NewAnnotationsHandler creates a new annotations handler.
func NewAnnotationsHandler(deps AnnotationDependencies) *AnnotationsHandler {
	return &AnnotationsHandler{deps: deps}
}

// HandleList handles GET /annotations requests with a GeoJSON FeatureCollection.
func (h *AnnotationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.annotations"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rows, err := h.deps.Annotations(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	raw, err := mapsurface.Annotations(rows).MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// HandleGet handles GET /annotations/{id} requests with tap info.
func (h *AnnotationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.annotation"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /annotations/
	id := strings.TrimPrefix(r.URL.Path, "/annotations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	info, err := h.deps.Annotation(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
