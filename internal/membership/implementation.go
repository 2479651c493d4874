// internal/membership/implementation.go
package membership

import (
	"context"
	"log/slog"
	"strings"
)

// service implements the Service interface.
type service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new membership service instance.
func NewService(store Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{store: store, logger: logger}
}

// AddMember records an account created by the identity provider. New members
// start ACTIVE.
func (s *service) AddMember(ctx context.Context, id, email, name string) (*Member, error) {
	m := &Member{
		ID:     strings.TrimSpace(id),
		Email:  strings.ToLower(strings.TrimSpace(email)),
		Name:   strings.TrimSpace(name),
		Status: StatusActive,
	}
	if m.ID == "" || m.Email == "" || m.Name == "" {
		return nil, ErrInvalidMember
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "member added", "member_id", m.ID)
	return m, nil
}

func (s *service) GetMember(ctx context.Context, id string) (*Member, error) {
	return s.store.Get(ctx, id)
}

// UpdateStatus changes a member's standing, which decides whether they may
// borrow from now on.
func (s *service) UpdateStatus(ctx context.Context, id string, status Status) (*Member, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	m, err := s.store.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "member status changed",
		"member_id", id,
		"status", status,
	)
	return m, nil
}
