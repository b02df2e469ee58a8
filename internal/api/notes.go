package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/services"
)

// NotesHandler handles note endpoints
type NotesHandler struct {
	docs services.Documents
}

// NewNotesHandler creates a new notes handler
func NewNotesHandler(docs services.Documents) *NotesHandler {
	return &NotesHandler{docs: docs}
}

// Routes mounts the note endpoints on a fresh router.
func (h *NotesHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

type noteInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// List handles GET /notes
func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.docs.List(r.Context())
	if handleStoreError(w, r, err, "Notes") {
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  notes,
		"total": len(notes),
	})
}

// Create handles POST /notes
func (h *NotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeJSON[noteInput](w, r)
	if !ok {
		return
	}
	if input.Title == "" {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "title is required")
		return
	}

	note, err := h.docs.Create(r.Context(), input.Title, input.Content)
	if handleStoreError(w, r, err, "Note") {
		return
	}
	sendJSON(w, http.StatusCreated, note)
}

// Get handles GET /notes/{id}
func (h *NotesHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if handleStoreError(w, r, err, "Note") {
		return
	}
	sendJSON(w, http.StatusOK, note)
}

// Update handles PUT /notes/{id}
func (h *NotesHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeJSON[noteInput](w, r)
	if !ok {
		return
	}

	note, err := h.docs.Update(r.Context(), chi.URLParam(r, "id"), input.Title, input.Content)
	if handleStoreError(w, r, err, "Note") {
		return
	}
	sendJSON(w, http.StatusOK, note)
}

// Delete handles DELETE /notes/{id}
func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.docs.Delete(r.Context(), chi.URLParam(r, "id"))
	if handleStoreError(w, r, err, "Note") {
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
