package membership

import (
	"context"

	"bookloan/internal/circulation"
)

// StatusAdapter answers the circulation domain's "may this user borrow?".
type StatusAdapter struct {
	store Store
}

var _ circulation.UserStatusPort = (*StatusAdapter)(nil)

func NewStatusAdapter(store Store) *StatusAdapter {
	return &StatusAdapter{store: store}
}

// IsActive reports whether the member's status is ACTIVE. Unknown users fail
// with ErrMemberNotFound.
func (a *StatusAdapter) IsActive(ctx context.Context, userID string) (bool, error) {
	m, err := a.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return m.Status == StatusActive, nil
}
