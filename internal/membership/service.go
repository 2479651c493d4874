// internal/membership/service.go
package membership

import "context"

// Service defines the member account operations this system owns. Signing
// members up and authenticating them happen elsewhere.
type Service interface {
	AddMember(ctx context.Context, id, email, name string) (*Member, error)
	GetMember(ctx context.Context, id string) (*Member, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Member, error)
}

// Store persists members.
type Store interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, id string) (*Member, error)
	SetStatus(ctx context.Context, id string, status Status) (*Member, error)
}
