package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danskode/mulle-i-hulen/internal/apperror"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serviceError maps a tagged service error to its status; anything else
// collapses to a generic 500 so internals never reach the response body.
func (r *Router) serviceError(w http.ResponseWriter, err error) {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		writeError(w, ae.Status(), ae.Message)
		return
	}
	r.logger.Error("unhandled service error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
