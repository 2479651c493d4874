package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps books in process memory. It is used for development and
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	books map[string]*Book
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books: make(map[string]*Book),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, book *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[book.ID]; ok {
		return fmt.Errorf("%w: %s", ErrBookExists, book.ID)
	}

	now := s.now().UTC()
	stored := *book
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.books[book.ID] = &stored
	*book = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	cp := *book
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]*Book, 0, len(s.books))
	for _, book := range s.books {
		cp := *book
		books = append(books, &cp)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].CreatedAt.Before(books[j].CreatedAt) })
	return books, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id string, to Status) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	if book.Status == StatusDeleted {
		return nil, fmt.Errorf("%w: %s", ErrBookDeleted, id)
	}

	book.Status = to
	book.UpdatedAt = s.now().UTC()
	cp := *book
	return &cp, nil
}

func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, id string, from, to Status) (*Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	if book.Status == StatusDeleted {
		return nil, fmt.Errorf("%w: %s", ErrBookDeleted, id)
	}
	if book.Status != from {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, id, book.Status, from)
	}

	book.Status = to
	book.UpdatedAt = s.now().UTC()
	cp := *book
	return &cp, nil
}
