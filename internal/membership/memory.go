package membership

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps members in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[string]*Member
	emails  map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[string]*Member),
		emails:  make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrMemberExists, m.ID)
	}
	if _, ok := s.emails[m.Email]; ok {
		return fmt.Errorf("%w: email %s is taken", ErrMemberExists, m.Email)
	}

	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	stored := *m
	s.members[m.ID] = &stored
	s.emails[m.Email] = m.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}
