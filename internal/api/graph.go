package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/services"
)

// GraphHandler handles link-graph endpoints
type GraphHandler struct {
	graph services.Graph
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(graph services.Graph) *GraphHandler {
	return &GraphHandler{graph: graph}
}

// Routes mounts the graph endpoints on a fresh router.
func (h *GraphHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{id}/links", h.Links)
	return r
}

// Links handles GET /graph/{id}/links
func (h *GraphHandler) Links(w http.ResponseWriter, r *http.Request) {
	links, err := h.graph.Links(r.Context(), chi.URLParam(r, "id"))
	if handleStoreError(w, r, err, "Note") {
		return
	}
	if links == nil {
		links = []string{}
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  links,
		"total": len(links),
	})
}
