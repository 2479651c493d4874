// Package httpx holds the JSON request/response helpers shared by the HTTP
// handlers.
package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"bookloan/internal/apperr"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status via apperr and writes {"error": ...}.
// Fatal errors are logged with full detail and reported generically.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if apperr.IsFatal(err) {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = http.StatusText(status)
	}
	WriteJSON(w, status, map[string]any{
		"error": msg,
		"kind":  apperr.Kind(err),
	})
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// IntQuery parses a non-negative integer query parameter, using fallback when
// it is absent.
func IntQuery(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", apperr.ErrInvalidInput, key)
	}
	return n, nil
}

// TimeQuery parses an optional RFC 3339 timestamp query parameter.
func TimeQuery(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", apperr.ErrInvalidInput, key)
	}
	return &t, nil
}
