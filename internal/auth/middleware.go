package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"bookloan/internal/apperr"
	"bookloan/internal/httpx"
)

// Headers set by the authenticating gateway.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRoles = "X-User-Roles"
)

// Middleware resolves the forwarded identity into a Principal. Requests
// without one are rejected with 401.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if id == "" {
				httpx.WriteError(w, r, logger, apperr.ErrUnauthenticated)
				return
			}

			p := Principal{ID: id, Roles: splitRoles(r.Header.Get(HeaderUserRoles))}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin rejects principals without the ADMIN role with 403.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				httpx.WriteError(w, r, logger, apperr.ErrUnauthenticated)
				return
			}
			if !p.IsAdmin() {
				httpx.WriteError(w, r, logger, apperr.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func splitRoles(header string) []string {
	var roles []string
	for _, role := range strings.Split(header, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
