package api

import (
	"net/http"
)

// SceneHandler serves the live map scene so a viewer can catch up before
// applying streamed operations.
type SceneHandler struct {
	deps SceneDependencies
}

// NewSceneHandler creates a new scene handler.
func NewSceneHandler(deps SceneDependencies) *SceneHandler {
	return &SceneHandler{deps: deps}
}

// HandleScene handles GET /scene requests.
func (h *SceneHandler) HandleScene(w http.ResponseWriter, r *http.Request) {
	const op = "api.scene"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.SceneSnapshot(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleGeoJSON handles GET /scene.geojson requests with every live marker
// and circle as a FeatureCollection.
func (h *SceneHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	const op = "api.scene_geojson"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.SceneSnapshot(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	raw, err := snap.FeatureCollection().MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
