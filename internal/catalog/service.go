// internal/catalog/service.go
package catalog

import (
	"context"

	"bookloan/internal/availability"
)

// Store is the durable availability store. It is the single source of truth
// for book status.
type Store interface {
	Create(ctx context.Context, book *Book) error
	Get(ctx context.Context, id string) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
	// SetStatus writes to unconditionally unless the book is deleted.
	SetStatus(ctx context.Context, id string, to Status) (*Book, error)
	// CompareAndSetStatus writes to only if the current status is from.
	CompareAndSetStatus(ctx context.Context, id string, from, to Status) (*Book, error)
}

// Service defines the catalog operations outside the borrowing flow.
type Service interface {
	AddBook(ctx context.Context, title, author string) (*Book, error)
	GetBook(ctx context.Context, id string) (*Book, error)
	DeleteBook(ctx context.Context, id string) error
	Snapshot(ctx context.Context) ([]availability.Event, error)
}
