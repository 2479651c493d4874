// Package apperr defines the error kinds shared by the borrowing and catalog
// domains and how the HTTP boundary reports them.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound marks a missing book, member or borrowing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks a request that conflicts with the current state:
	// inactive user, unavailable book, already returned, not the owner.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated is returned when no principal is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Kind names the category of err for logs and responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "fatal"
	}
}

// HTTPStatus maps err to a response status. Anything outside the taxonomy is
// fatal and maps to 500.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "invalid_state":
		return http.StatusConflict
	case "invalid_input":
		return http.StatusBadRequest
	case "unauthenticated":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// IsFatal reports whether err is outside the expected, user-facing kinds.
func IsFatal(err error) bool {
	return err != nil && Kind(err) == "fatal"
}
