// internal/circulation/domain.go
package circulation

import (
	"fmt"
	"math"
	"time"

	"bookloan/internal/apperr"
)

// LoanPeriod is how long a patron may keep a borrowed book.
const LoanPeriod = 14 * 24 * time.Hour

// Status is the lifecycle state of a borrowing. RETURNED is final.
type Status string

const (
	StatusBorrowed Status = "BORROWED"
	StatusReturned Status = "RETURNED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusBorrowed || s == StatusReturned
}

var (
	ErrBorrowingNotFound = fmt.Errorf("borrowing %w", apperr.ErrNotFound)
	ErrUserNotActive     = fmt.Errorf("%w: user is not active", apperr.ErrInvalidState)
	ErrBookNotAvailable  = fmt.Errorf("%w: book is not available", apperr.ErrInvalidState)
	ErrAlreadyReturned   = fmt.Errorf("%w: borrowing is already returned", apperr.ErrInvalidState)
	ErrNotOwner          = fmt.Errorf("%w: borrowing belongs to another user", apperr.ErrInvalidState)
	ErrBookOnLoan        = fmt.Errorf("%w: book has an open borrowing", apperr.ErrInvalidState)
	ErrInvalidBookID     = fmt.Errorf("%w: bookId is required", apperr.ErrInvalidInput)
	ErrInvalidStatus     = fmt.Errorf("%w: unknown borrowing status", apperr.ErrInvalidInput)
)

// Borrowing records one patron holding one book. ReturnedAt is set exactly
// when Status is RETURNED.
type Borrowing struct {
	ID         string     `json:"id" db:"id"`
	BookID     string     `json:"bookId" db:"book_id"`
	PatronID   string     `json:"patronId" db:"patron_id"`
	BorrowedAt time.Time  `json:"borrowedAt" db:"borrowed_at"`
	DueAt      time.Time  `json:"dueAt" db:"due_at"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty" db:"returned_at"`
	Status     Status     `json:"status" db:"status"`
}

// IsOverdue reports whether the borrowing is, or was returned, past its due
// date as of now.
func (b *Borrowing) IsOverdue(now time.Time) bool {
	switch b.Status {
	case StatusBorrowed:
		return b.DueAt.Before(now)
	case StatusReturned:
		return b.ReturnedAt != nil && b.ReturnedAt.After(b.DueAt)
	default:
		return false
	}
}

// Filter narrows a borrowing search. Zero fields do not filter; time bounds
// are inclusive.
type Filter struct {
	PatronID     string
	BookID       string
	Status       Status
	BorrowedFrom *time.Time
	BorrowedTo   *time.Time
	DueFrom      *time.Time
	DueTo        *time.Time
}

// Matches reports whether b satisfies every set field of f.
func (f Filter) Matches(b *Borrowing) bool {
	if f.PatronID != "" && b.PatronID != f.PatronID {
		return false
	}
	if f.BookID != "" && b.BookID != f.BookID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return within(b.BorrowedAt, f.BorrowedFrom, f.BorrowedTo) && within(b.DueAt, f.DueFrom, f.DueTo)
}

func within(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPageNumber keeps Number*MaxPageSize within int.
	MaxPageNumber = math.MaxInt / MaxPageSize
)

// Page selects a zero-based page of results.
type Page struct {
	Number int
	Size   int
}

// Normalize fills in the default size and clamps oversize requests.
func (p Page) Normalize() Page {
	switch {
	case p.Number < 0:
		p.Number = 0
	case p.Number > MaxPageNumber:
		p.Number = MaxPageNumber
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of items before the page.
func (p Page) Offset() int {
	return p.Number * p.Size
}

// PageResult is one page of borrowings plus totals.
type PageResult struct {
	Items      []*Borrowing `json:"items"`
	Number     int          `json:"page"`
	Size       int          `json:"size"`
	TotalItems int          `json:"totalItems"`
	TotalPages int          `json:"totalPages"`
}

func newPageResult(items []*Borrowing, page Page, total int) *PageResult {
	if items == nil {
		items = []*Borrowing{}
	}
	pages := 0
	if total > 0 {
		pages = (total + page.Size - 1) / page.Size
	}
	return &PageResult{
		Items:      items,
		Number:     page.Number,
		Size:       page.Size,
		TotalItems: total,
		TotalPages: pages,
	}
}
