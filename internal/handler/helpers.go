package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/keygatehq/keygate/internal/model"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeStoreError logs a backend failure with full detail and surfaces a
// generic message to the caller; driver internals never reach unauthenticated
// clients.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	logger.Error("store operation failed", "op", op, "error", err)
	writeError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable. Please try again later.")
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// baseURL reconstructs the externally visible origin of the request,
// honoring X-Forwarded-Proto when the server sits behind a proxy.
func baseURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}
