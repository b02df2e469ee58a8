package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/auth"
)

// CollabHandler handles the collaboration session and websocket endpoints.
// Clients first mint a session token, then present it when upgrading to a
// websocket connection on /ws.
type CollabHandler struct {
	sessions *auth.Sessions
	ws       http.Handler
}

// NewCollabHandler creates a new collab handler. ws serves the websocket
// upgrade endpoint.
func NewCollabHandler(sessions *auth.Sessions, ws http.Handler) *CollabHandler {
	return &CollabHandler{sessions: sessions, ws: ws}
}

// Routes mounts the collab endpoints on a fresh router.
func (h *CollabHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/session", h.CreateSession)
	if h.ws != nil {
		r.Handle("/ws", h.ws)
	}
	return r
}

// SessionResponse carries a freshly minted collaboration token.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateSession handles POST /collab/session
func (h *CollabHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeJSON[struct {
		Client string `json:"client"`
	}](w, r)
	if !ok {
		return
	}
	if input.Client == "" {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "client is required")
		return
	}

	token, expires, err := h.sessions.Mint(input.Client)
	if err != nil {
		sendError(w, r, http.StatusInternalServerError, "SESSION_ERROR", "Failed to mint session token")
		return
	}
	sendJSON(w, http.StatusCreated, SessionResponse{Token: token, ExpiresAt: expires})
}
