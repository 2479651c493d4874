package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookloan/internal/postgres"
)

func TestPostgresStore(t *testing.T) {
	db := postgres.OpenTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	book := &Book{ID: "b1", Title: "Dune", Author: "Herbert", Status: StatusAvailable}
	require.NoError(t, store.Create(ctx, book))
	assert.False(t, book.CreatedAt.IsZero())
	assert.ErrorIs(t, store.Create(ctx, &Book{ID: "b1", Title: "Dune", Status: StatusAvailable}), ErrBookExists)

	got, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Herbert", got.Author)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)

	updated, err := store.CompareAndSetStatus(ctx, "b1", StatusAvailable, StatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, updated.Status)

	_, err = store.CompareAndSetStatus(ctx, "b1", StatusAvailable, StatusBorrowed)
	assert.ErrorIs(t, err, ErrStatusConflict)

	updated, err = store.SetStatus(ctx, "b1", StatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, updated.Status)

	_, err = store.CompareAndSetStatus(ctx, "b1", StatusBorrowed, StatusAvailable)
	require.NoError(t, err)
	_, err = store.CompareAndSetStatus(ctx, "b1", StatusAvailable, StatusDeleted)
	require.NoError(t, err)

	_, err = store.SetStatus(ctx, "b1", StatusAvailable)
	assert.ErrorIs(t, err, ErrBookDeleted)
	_, err = store.CompareAndSetStatus(ctx, "missing", StatusAvailable, StatusBorrowed)
	assert.ErrorIs(t, err, ErrBookNotFound)

	require.NoError(t, store.Create(ctx, &Book{ID: "b2", Title: "Emma", Status: StatusAvailable}))
	books, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, StatusDeleted, books[0].Status)
}
