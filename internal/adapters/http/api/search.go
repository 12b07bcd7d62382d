package api

import (
	"net/http"
	"strings"
)

// SearchHandler handles forward and reverse place lookups.
type SearchHandler struct {
	deps SearchDependencies
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(deps SearchDependencies) *SearchHandler {
	return &SearchHandler{deps: deps}
}

type searchResponse struct {
	Seq   uint64 `json:"seq"`
	Query string `json:"query"`
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// HandleSearch handles GET /search?q= requests. The result is applied to
// the map asynchronously and announced over the stream.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingQuery))
		return
	}
	seq, err := h.deps.Search(r.Context(), q)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, searchResponse{Seq: seq, Query: q})
}

// HandleReverse handles GET /reverse?lat=&lng= requests.
func (h *SearchHandler) HandleReverse(w http.ResponseWriter, r *http.Request) {
	const op = "api.reverse"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	pos, err := queryPosition(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	name, err := h.deps.Reverse(r.Context(), pos)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, reverseResponse{DisplayName: name})
}
