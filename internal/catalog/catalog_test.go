package catalog

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookloan/internal/apperr"
	"bookloan/internal/availability"
)

const waitTimeout = 2 * time.Second

type harness struct {
	store     *MemoryStore
	bus       *availability.Bus
	publisher *StatusPublisher
	svc       Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: NewMemoryStore(),
		bus:   availability.NewBus(),
	}
	t.Cleanup(h.bus.Close)
	h.publisher = NewStatusPublisher(h.store, h.bus, nil)
	h.svc = NewService(h.store, h.publisher)
	return h
}

func (h *harness) addBook(t *testing.T, title string) *Book {
	t.Helper()
	book, err := h.svc.AddBook(context.Background(), title, "")
	require.NoError(t, err)
	return book
}

func next(t *testing.T, sub *availability.Subscription) availability.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return availability.Event{}
	}
}

func assertQuiet(t *testing.T, sub *availability.Subscription) {
	t.Helper()
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_StatusWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, &Book{ID: "b1", Title: "Dune", Status: StatusAvailable}))
	err := store.Create(ctx, &Book{ID: "b1", Title: "Dune again", Status: StatusAvailable})
	assert.ErrorIs(t, err, ErrBookExists)
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	book, err := store.SetStatus(ctx, "b1", StatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, book.Status)

	_, err = store.CompareAndSetStatus(ctx, "b1", StatusAvailable, StatusBorrowed)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	book, err = store.CompareAndSetStatus(ctx, "b1", StatusBorrowed, StatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, book.Status)

	_, err = store.CompareAndSetStatus(ctx, "b1", StatusAvailable, StatusDeleted)
	require.NoError(t, err)

	_, err = store.SetStatus(ctx, "b1", StatusAvailable)
	assert.ErrorIs(t, err, ErrBookDeleted, "deleted is terminal")
	_, err = store.CompareAndSetStatus(ctx, "b1", StatusDeleted, StatusAvailable)
	assert.ErrorIs(t, err, ErrBookDeleted)

	_, err = store.SetStatus(ctx, "missing", StatusBorrowed)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestService_AddAndSnapshot(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.AddBook(context.Background(), "   ", "anon")
	assert.ErrorIs(t, err, ErrInvalidTitle)

	dune := h.addBook(t, " Dune ")
	assert.Equal(t, "Dune", dune.Title)
	assert.Equal(t, StatusAvailable, dune.Status)
	assert.NotEmpty(t, dune.ID)

	sub := h.bus.Subscribe()
	defer sub.Close()
	emma := h.addBook(t, "Emma")
	assert.Equal(t, availability.Event{BookID: emma.ID, Title: "Emma", Status: StatusAvailable}, next(t, sub))
	require.NoError(t, h.svc.DeleteBook(context.Background(), emma.ID))

	snapshot, err := h.svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []availability.Event{
		{BookID: dune.ID, Title: "Dune", Status: StatusAvailable},
		{BookID: emma.ID, Title: "Emma", Status: StatusDeleted},
	}, snapshot)
}

func TestService_DeleteBook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.addBook(t, "Dune")
	sub := h.bus.Subscribe()
	defer sub.Close()

	_, err := h.store.SetStatus(ctx, book.ID, StatusBorrowed)
	require.NoError(t, err)
	err = h.svc.DeleteBook(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookBorrowed)
	assertQuiet(t, sub)

	_, err = h.store.SetStatus(ctx, book.ID, StatusAvailable)
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteBook(ctx, book.ID))
	assert.Equal(t, availability.Event{BookID: book.ID, Title: "Dune", Status: StatusDeleted}, next(t, sub))

	err = h.svc.DeleteBook(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookDeleted)

	err = h.svc.DeleteBook(ctx, "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestAvailabilityAdapter(t *testing.T) {
	for _, mode := range []TransitionMode{ModeAtomic, ModeNaive} {
		t.Run(mode.String(), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			adapter := NewAvailabilityAdapter(h.store, h.publisher, WithTransitionMode(mode))
			book := h.addBook(t, "Dune")
			sub := h.bus.Subscribe()
			defer sub.Close()

			ok, err := adapter.IsAvailable(ctx, book.ID)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = adapter.IsAvailable(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok, "a missing book is simply not available")

			ok, err = adapter.MarkBorrowed(ctx, book.ID)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, availability.Event{BookID: book.ID, Title: "Dune", Status: StatusBorrowed}, next(t, sub))

			ok, err = adapter.IsAvailable(ctx, book.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = adapter.MarkAvailable(ctx, book.ID)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, StatusAvailable, next(t, sub).Status)

			_, err = adapter.MarkBorrowed(ctx, "missing")
			assert.ErrorIs(t, err, ErrBookNotFound)
			assertQuiet(t, sub)
		})
	}
}

func TestAvailabilityAdapter_RepeatedBorrow(t *testing.T) {
	t.Run("atomic rejects and stays quiet", func(t *testing.T) {
		h := newHarness(t)
		adapter := NewAvailabilityAdapter(h.store, h.publisher)
		book := h.addBook(t, "Dune")
		sub := h.bus.Subscribe()
		defer sub.Close()

		_, err := adapter.MarkBorrowed(context.Background(), book.ID)
		require.NoError(t, err)
		next(t, sub)

		ok, err := adapter.MarkBorrowed(context.Background(), book.ID)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrStatusConflict)
		assertQuiet(t, sub)
	})

	t.Run("naive accepts and emits again", func(t *testing.T) {
		h := newHarness(t)
		adapter := NewAvailabilityAdapter(h.store, h.publisher, WithTransitionMode(ModeNaive))
		book := h.addBook(t, "Dune")
		sub := h.bus.Subscribe()
		defer sub.Close()

		for i := 0; i < 2; i++ {
			ok, err := adapter.MarkBorrowed(context.Background(), book.ID)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, StatusBorrowed, next(t, sub).Status)
		}
	})

	t.Run("neither mode revives a deleted book", func(t *testing.T) {
		for _, mode := range []TransitionMode{ModeAtomic, ModeNaive} {
			h := newHarness(t)
			adapter := NewAvailabilityAdapter(h.store, h.publisher, WithTransitionMode(mode))
			book := h.addBook(t, "Dune")
			require.NoError(t, h.svc.DeleteBook(context.Background(), book.ID))

			_, err := adapter.MarkAvailable(context.Background(), book.ID)
			assert.ErrorIs(t, err, ErrBookDeleted, mode.String())
		}
	})
}

func TestStatusPublisher_PerBookOrderMatchesCommitOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.addBook(t, "Dune")
	sub := h.bus.Subscribe()
	defer sub.Close()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				to := StatusBorrowed
				if (w+i)%2 == 0 {
					to = StatusAvailable
				}
				_, err := h.publisher.Set(ctx, book.ID, to)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	var last availability.Event
	for i := 0; i < writers*perWriter; i++ {
		last = next(t, sub)
	}
	assertQuiet(t, sub)

	stored, err := h.store.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Status, last.Status, "the last event seen is the committed status")
}

func TestParseTransitionMode(t *testing.T) {
	for in, want := range map[string]TransitionMode{"": ModeAtomic, "atomic": ModeAtomic, "naive": ModeNaive} {
		got, err := ParseTransitionMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTransitionMode("optimistic")
	assert.Error(t, err)
}
