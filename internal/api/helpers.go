package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inkwell-notes/inkwell/internal/middleware"
	"github.com/inkwell-notes/inkwell/internal/services"
)

// sendJSON sends a JSON response
func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendError sends a standardized error response
func sendError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := middleware.ErrorResponse{
		Error: middleware.ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// decodeJSON decodes request body with error handling
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var input T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body")
		return input, false
	}
	return input, true
}

// handleStoreError sends the appropriate error response for a storage error.
func handleStoreError(w http.ResponseWriter, r *http.Request, err error, entityName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, services.ErrNoteNotFound) {
		sendError(w, r, http.StatusNotFound, "NOT_FOUND", entityName+" not found")
	} else {
		sendError(w, r, http.StatusInternalServerError, "STORAGE_ERROR", "Storage error")
	}
	return true
}
