package circulation

import "context"

// AvailabilityPort is the circulation domain's view of book availability.
// MarkBorrowed and MarkAvailable persist the new status and announce it.
type AvailabilityPort interface {
	IsAvailable(ctx context.Context, bookID string) (bool, error)
	MarkBorrowed(ctx context.Context, bookID string) (bool, error)
	MarkAvailable(ctx context.Context, bookID string) (bool, error)
}

// UserStatusPort answers whether a user may borrow.
type UserStatusPort interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}
