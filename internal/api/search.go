package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/services"
)

// SearchHandler handles search endpoints
type SearchHandler struct {
	search services.Search
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search services.Search) *SearchHandler {
	return &SearchHandler{search: search}
}

// Routes mounts the search endpoint on a fresh router.
func (h *SearchHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Query)
	return r
}

// Query handles GET /search?q=term
func (h *SearchHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "q is required")
		return
	}

	notes, err := h.search.Query(r.Context(), q)
	if handleStoreError(w, r, err, "Notes") {
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  notes,
		"total": len(notes),
	})
}
