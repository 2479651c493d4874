// internal/membership/domain.go
package membership

import (
	"fmt"
	"time"

	"bookloan/internal/apperr"
)

// Status is a member account's standing. Only ACTIVE members may borrow.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPassive   Status = "PASSIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPassive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

var (
	ErrMemberNotFound = fmt.Errorf("member %w", apperr.ErrNotFound)
	ErrInvalidStatus  = fmt.Errorf("%w: unknown member status", apperr.ErrInvalidInput)
	ErrInvalidMember  = fmt.Errorf("%w: member id, email and name are required", apperr.ErrInvalidInput)
	ErrMemberExists   = fmt.Errorf("%w: member already exists", apperr.ErrInvalidState)
)

// Member represents a library member.
type Member struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
