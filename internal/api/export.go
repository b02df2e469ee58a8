package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/services"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	export services.Export
}

// NewExportHandler creates a new export handler
func NewExportHandler(export services.Export) *ExportHandler {
	return &ExportHandler{export: export}
}

// Routes mounts the export endpoints on a fresh router.
func (h *ExportHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{id}/markdown", h.Markdown)
	return r
}

// Markdown handles GET /export/{id}/markdown
func (h *ExportHandler) Markdown(w http.ResponseWriter, r *http.Request) {
	out, err := h.export.Markdown(r.Context(), chi.URLParam(r, "id"))
	if handleStoreError(w, r, err, "Note") {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
