package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/services"
)

// TasksHandler handles task endpoints
type TasksHandler struct {
	tasks services.Tasks
}

// NewTasksHandler creates a new tasks handler
func NewTasksHandler(tasks services.Tasks) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// Routes mounts the task endpoints on a fresh router.
func (h *TasksHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.SetDone)
	return r
}

// List handles GET /tasks
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if handleStoreError(w, r, err, "Tasks") {
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  tasks,
		"total": len(tasks),
	})
}

// Create handles POST /tasks
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeJSON[struct {
		NoteID string `json:"note_id"`
		Text   string `json:"text"`
	}](w, r)
	if !ok {
		return
	}
	if input.Text == "" {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "text is required")
		return
	}

	task, err := h.tasks.Create(r.Context(), input.NoteID, input.Text)
	if handleStoreError(w, r, err, "Task") {
		return
	}
	sendJSON(w, http.StatusCreated, task)
}

// SetDone handles PATCH /tasks/{id}
func (h *TasksHandler) SetDone(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeJSON[struct {
		Done bool `json:"done"`
	}](w, r)
	if !ok {
		return
	}

	task, err := h.tasks.SetDone(r.Context(), chi.URLParam(r, "id"), input.Done)
	if handleStoreError(w, r, err, "Task") {
		return
	}
	sendJSON(w, http.StatusOK, task)
}
