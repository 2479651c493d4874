package circulation

import (
	"context"
	"sync"
)

type fakeAvailability struct {
	mu            sync.Mutex
	isAvailable   func(bookID string) (bool, error)
	markBorrowed  func(bookID string) (bool, error)
	markAvailable func(bookID string) (bool, error)
	calls         []string
}

func (f *fakeAvailability) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAvailability) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAvailability) IsAvailable(ctx context.Context, bookID string) (bool, error) {
	f.record("IsAvailable:" + bookID)
	if f.isAvailable == nil {
		return true, nil
	}
	return f.isAvailable(bookID)
}

func (f *fakeAvailability) MarkBorrowed(ctx context.Context, bookID string) (bool, error) {
	f.record("MarkBorrowed:" + bookID)
	if f.markBorrowed == nil {
		return true, nil
	}
	return f.markBorrowed(bookID)
}

func (f *fakeAvailability) MarkAvailable(ctx context.Context, bookID string) (bool, error) {
	f.record("MarkAvailable:" + bookID)
	if f.markAvailable == nil {
		return true, nil
	}
	return f.markAvailable(bookID)
}

type fakeUsers struct {
	isActive func(userID string) (bool, error)
}

func (f *fakeUsers) IsActive(ctx context.Context, userID string) (bool, error) {
	if f.isActive == nil {
		return true, nil
	}
	return f.isActive(userID)
}
