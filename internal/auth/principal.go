// Package auth is the seam to the external authentication service. Requests
// arrive already authenticated by the gateway, which forwards the caller's
// identity and roles in headers; this package turns them into a Principal on
// the request context.
package auth

import (
	"context"
	"strings"
)

// RoleAdmin grants access to administrative operations.
const RoleAdmin = "ADMIN"

// Principal is the authenticated caller.
type Principal struct {
	ID    string
	Roles []string
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	for _, role := range p.Roles {
		if strings.EqualFold(role, RoleAdmin) {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal attached to ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}
