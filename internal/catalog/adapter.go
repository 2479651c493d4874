package catalog

import (
	"context"
	"errors"

	"bookloan/internal/circulation"
)

// AvailabilityAdapter lets the circulation domain read and change book status
// without depending on catalog storage.
type AvailabilityAdapter struct {
	store     Store
	publisher *StatusPublisher
	mode      TransitionMode
}

var _ circulation.AvailabilityPort = (*AvailabilityAdapter)(nil)

// AdapterOption configures an AvailabilityAdapter.
type AdapterOption func(*AvailabilityAdapter)

// WithTransitionMode selects atomic or naive status transitions.
func WithTransitionMode(mode TransitionMode) AdapterOption {
	return func(a *AvailabilityAdapter) {
		a.mode = mode
	}
}

// NewAvailabilityAdapter creates the adapter. Transitions are atomic unless
// configured otherwise.
func NewAvailabilityAdapter(store Store, publisher *StatusPublisher, opts ...AdapterOption) *AvailabilityAdapter {
	a := &AvailabilityAdapter{
		store:     store,
		publisher: publisher,
		mode:      ModeAtomic,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsAvailable reports whether the book is currently AVAILABLE. An unknown
// book is not available.
func (a *AvailabilityAdapter) IsAvailable(ctx context.Context, bookID string) (bool, error) {
	book, err := a.store.Get(ctx, bookID)
	if errors.Is(err, ErrBookNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return book.Status == StatusAvailable, nil
}

// MarkBorrowed moves the book to BORROWED and announces it.
func (a *AvailabilityAdapter) MarkBorrowed(ctx context.Context, bookID string) (bool, error) {
	return a.transition(ctx, bookID, StatusAvailable, StatusBorrowed)
}

// MarkAvailable moves the book back to AVAILABLE and announces it.
func (a *AvailabilityAdapter) MarkAvailable(ctx context.Context, bookID string) (bool, error) {
	return a.transition(ctx, bookID, StatusBorrowed, StatusAvailable)
}

func (a *AvailabilityAdapter) transition(ctx context.Context, bookID string, from, to Status) (bool, error) {
	var err error
	if a.mode == ModeNaive {
		_, err = a.publisher.Set(ctx, bookID, to)
	} else {
		_, err = a.publisher.CompareAndSet(ctx, bookID, from, to)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
