package server

import (
	"encoding/json"
	"net/http"

	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/logger"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorw("Failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to an HTTP status. Recognized application errors
// surface their message; anything else is a 500 with a generic body so
// internals never leak to clients.
func writeAppError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if !errors.IsApplicationError(err) {
		logger.Errorw("Unhandled error in request", "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}
