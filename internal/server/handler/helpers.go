package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alanyoungcy/betwixt/internal/domain"
)

// maxBodyBytes caps request bodies accepted by POST endpoints.
const maxBodyBytes = 64 << 10

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes the mapped status. 4xx responses
// carry the error text; 5xx responses carry msg only.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg,
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrNotConfigured) {
			msg = "insight generation is not configured"
		}
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}

// pathParam extracts a named chi route parameter.
func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// queryInt parses a non-negative integer query parameter, returning def when
// it is absent and ok=false when it is malformed.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def, false
	}
	return n, true
}
