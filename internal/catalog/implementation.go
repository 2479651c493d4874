// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bookloan/internal/availability"
)

// service implements the Service interface.
type service struct {
	store     Store
	publisher *StatusPublisher
}

// NewService creates a new catalog service instance.
func NewService(store Store, publisher *StatusPublisher) Service {
	return &service{
		store:     store,
		publisher: publisher,
	}
}

// AddBook catalogs a new, available book and announces it.
func (s *service) AddBook(ctx context.Context, title, author string) (*Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}

	book := &Book{
		ID:     uuid.NewString(),
		Title:  title,
		Author: strings.TrimSpace(author),
		Status: StatusAvailable,
	}
	if err := s.publisher.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to add book: %w", err)
	}

	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id string) (*Book, error) {
	return s.store.Get(ctx, id)
}

// DeleteBook retires an available book for good. Borrowed books must be
// returned first.
func (s *service) DeleteBook(ctx context.Context, id string) error {
	_, err := s.publisher.CompareAndSet(ctx, id, StatusAvailable, StatusDeleted)
	if errors.Is(err, ErrStatusConflict) {
		return fmt.Errorf("%w: %s", ErrBookBorrowed, id)
	}
	return err
}

// Snapshot returns the current status of every book, deleted ones included.
func (s *service) Snapshot(ctx context.Context) ([]availability.Event, error) {
	books, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]availability.Event, 0, len(books))
	for _, book := range books {
		events = append(events, book.Event())
	}
	return events, nil
}
