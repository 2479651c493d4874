package catalog

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"bookloan/internal/availability"
)

const lockStripes = 64

// StatusPublisher is the only writer of book status. For one book, the store
// write and the event it produces happen under the same lock, so subscribers
// observe a book's events in commit order and never before the commit.
type StatusPublisher struct {
	store  Store
	bus    *availability.Bus
	logger *slog.Logger
	locks  [lockStripes]sync.Mutex
}

// NewStatusPublisher creates a publisher writing to store and announcing on bus.
func NewStatusPublisher(store Store, bus *availability.Bus, logger *slog.Logger) *StatusPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusPublisher{
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// Set writes to unconditionally (deleted books excepted) and publishes.
func (p *StatusPublisher) Set(ctx context.Context, id string, to Status) (*Book, error) {
	mu := p.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	book, err := p.store.SetStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}
	p.publish(book)
	return book, nil
}

// CompareAndSet writes to only if the book is currently from, then publishes.
func (p *StatusPublisher) CompareAndSet(ctx context.Context, id string, from, to Status) (*Book, error) {
	mu := p.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	book, err := p.store.CompareAndSetStatus(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	p.publish(book)
	return book, nil
}

// Create stores a new book and announces its initial status.
func (p *StatusPublisher) Create(ctx context.Context, book *Book) error {
	mu := p.lockFor(book.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := p.store.Create(ctx, book); err != nil {
		return err
	}
	p.publish(book)
	return nil
}

func (p *StatusPublisher) publish(book *Book) {
	p.bus.Publish(book.Event())
	p.logger.Debug("availability changed", "book_id", book.ID, "status", book.Status)
}

func (p *StatusPublisher) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &p.locks[h.Sum32()%lockStripes]
}
