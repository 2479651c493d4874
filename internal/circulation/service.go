// internal/circulation/service.go
package circulation

import (
	"context"
	"time"
)

// Service defines the borrowing lifecycle.
type Service interface {
	BorrowBook(ctx context.Context, bookID string) (*Borrowing, error)
	ReturnBook(ctx context.Context, borrowingID string) (*Borrowing, error)
	SearchBorrowings(ctx context.Context, filter Filter, page Page) (*PageResult, error)
	OverdueBorrowings(ctx context.Context, page Page) (*PageResult, error)
	// ReleaseBook marks a book AVAILABLE when no borrowing holds it. Admin only.
	ReleaseBook(ctx context.Context, bookID string) error
}

// Repository persists borrowing records.
type Repository interface {
	Create(ctx context.Context, b *Borrowing) error
	Get(ctx context.Context, id string) (*Borrowing, error)
	// MarkReturned moves a BORROWED record to RETURNED. It fails with
	// ErrAlreadyReturned if the record is no longer BORROWED.
	MarkReturned(ctx context.Context, id string, at time.Time) (*Borrowing, error)
	// Discard removes a record that never took effect.
	Discard(ctx context.Context, id string) error
	Search(ctx context.Context, filter Filter, page Page) ([]*Borrowing, int, error)
	Overdue(ctx context.Context, now time.Time, page Page) ([]*Borrowing, int, error)
}
