package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/erazemk/podari/internal/apperr"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// statusFor maps an error code to its HTTP status.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates a service error into a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	switch {
	case code == apperr.CodeStorage:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	case apperr.IsValidation(err):
		slog.Debug("invalid request", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	jsonError(w, statusFor(code), apperr.Message(err))
}
