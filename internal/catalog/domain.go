// internal/catalog/domain.go
package catalog

import (
	"fmt"
	"time"

	"bookloan/internal/apperr"
	"bookloan/internal/availability"
)

// Status is a book's availability status. DELETED is terminal.
type Status = availability.Status

const (
	StatusAvailable = availability.StatusAvailable
	StatusBorrowed  = availability.StatusBorrowed
	StatusDeleted   = availability.StatusDeleted
)

var (
	ErrBookNotFound   = fmt.Errorf("book %w", apperr.ErrNotFound)
	ErrBookExists     = fmt.Errorf("%w: book already exists", apperr.ErrInvalidState)
	ErrBookDeleted    = fmt.Errorf("%w: book is deleted", apperr.ErrInvalidState)
	ErrBookBorrowed   = fmt.Errorf("%w: book is borrowed", apperr.ErrInvalidState)
	ErrStatusConflict = fmt.Errorf("%w: book status changed concurrently", apperr.ErrInvalidState)
	ErrInvalidTitle   = fmt.Errorf("%w: title is required", apperr.ErrInvalidInput)
)

// Book is the catalog's availability record for one title.
type Book struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Author    string    `json:"author,omitempty" db:"author"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Event converts the book's current state into an availability event.
func (b *Book) Event() availability.Event {
	return availability.Event{
		BookID: b.ID,
		Title:  b.Title,
		Status: b.Status,
	}
}

// TransitionMode decides how MarkBorrowed and MarkAvailable write the status.
type TransitionMode int

const (
	// ModeAtomic only writes the new status if the book is in the expected
	// prior status; a concurrent loser gets ErrStatusConflict.
	ModeAtomic TransitionMode = iota
	// ModeNaive writes the new status unconditionally. Two racing borrowers
	// can both succeed and each publishes an event.
	ModeNaive
)

func (m TransitionMode) String() string {
	switch m {
	case ModeAtomic:
		return "atomic"
	case ModeNaive:
		return "naive"
	default:
		return fmt.Sprintf("TransitionMode(%d)", int(m))
	}
}

// ParseTransitionMode maps a configuration value to a TransitionMode.
func ParseTransitionMode(s string) (TransitionMode, error) {
	switch s {
	case "", "atomic":
		return ModeAtomic, nil
	case "naive":
		return ModeNaive, nil
	default:
		return 0, fmt.Errorf("unknown transition mode %q", s)
	}
}
