package circulation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps borrowings in process memory. Unlike the Postgres
// repository it does not enforce one open borrowing per book, so two
// borrowings for the same book can coexist when transitions are naive.
type MemoryRepository struct {
	mu         sync.RWMutex
	borrowings map[string]*Borrowing
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{borrowings: make(map[string]*Borrowing)}
}

func (r *MemoryRepository) Create(ctx context.Context, b *Borrowing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.borrowings[b.ID]; ok {
		return fmt.Errorf("borrowing with ID %s already exists", b.ID)
	}
	r.borrowings[b.ID] = clone(b)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Borrowing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.borrowings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBorrowingNotFound, id)
	}
	return clone(b), nil
}

func (r *MemoryRepository) MarkReturned(ctx context.Context, id string, at time.Time) (*Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.borrowings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBorrowingNotFound, id)
	}
	if b.Status != StatusBorrowed {
		return nil, ErrAlreadyReturned
	}
	returned := at
	b.ReturnedAt = &returned
	b.Status = StatusReturned
	return clone(b), nil
}

func (r *MemoryRepository) Discard(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.borrowings, id)
	return nil
}

func (r *MemoryRepository) Search(ctx context.Context, filter Filter, page Page) ([]*Borrowing, int, error) {
	return r.collect(page, filter.Matches)
}

func (r *MemoryRepository) Overdue(ctx context.Context, now time.Time, page Page) ([]*Borrowing, int, error) {
	return r.collect(page, func(b *Borrowing) bool { return b.IsOverdue(now) })
}

// collect returns the requested page of matching records ordered by
// borrowedAt, then id.
func (r *MemoryRepository) collect(page Page, match func(*Borrowing) bool) ([]*Borrowing, int, error) {
	r.mu.RLock()
	var matched []*Borrowing
	for _, b := range r.borrowings {
		if match(b) {
			matched = append(matched, clone(b))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].BorrowedAt.Equal(matched[j].BorrowedAt) {
			return matched[i].BorrowedAt.Before(matched[j].BorrowedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	page = page.Normalize()
	start := page.Offset()
	if start < 0 || start >= total {
		return nil, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func clone(b *Borrowing) *Borrowing {
	c := *b
	if b.ReturnedAt != nil {
		t := *b.ReturnedAt
		c.ReturnedAt = &t
	}
	return &c
}
