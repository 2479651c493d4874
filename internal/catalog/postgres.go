package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookloan/internal/postgres"
)

const bookColumns = "id, title, author, status, created_at, updated_at"

// PostgresStore persists books in the books table.
type PostgresStore struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("bookloan/catalog"),
	}
}

func (s *PostgresStore) Create(ctx context.Context, book *Book) error {
	ctx, span := s.tracer.Start(ctx, "catalog.store.create",
		trace.WithAttributes(attribute.String("book.id", book.ID)),
	)
	defer span.End()

	query := `
		INSERT INTO books (id, title, author, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowxContext(ctx, query, book.ID, book.Title, book.Author, book.Status).
		Scan(&book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		if postgres.IsCode(err, postgres.CodeUniqueViolation) {
			return fmt.Errorf("%w: %s", ErrBookExists, book.ID)
		}
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.store.get",
		trace.WithAttributes(attribute.String("book.id", id)),
	)
	defer span.End()

	book := &Book{}
	err := s.db.GetContext(ctx, book, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.store.list")
	defer span.End()

	var books []*Book
	if err := s.db.SelectContext(ctx, &books, `SELECT `+bookColumns+` FROM books ORDER BY created_at, id`); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	span.SetAttributes(attribute.Int("books.loaded", len(books)))
	return books, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, to Status) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.store.set_status",
		trace.WithAttributes(
			attribute.String("book.id", id),
			attribute.String("status.to", string(to)),
		),
	)
	defer span.End()

	query := `
		UPDATE books
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status <> 'DELETED'
		RETURNING ` + bookColumns
	return s.update(ctx, span, id, "", query, to, id)
}

func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, id string, from, to Status) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.store.compare_and_set_status",
		trace.WithAttributes(
			attribute.String("book.id", id),
			attribute.String("status.from", string(from)),
			attribute.String("status.to", string(to)),
		),
	)
	defer span.End()

	query := `
		UPDATE books
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status <> 'DELETED'
		RETURNING ` + bookColumns
	return s.update(ctx, span, id, from, query, to, id, from)
}

// update runs a conditional status update. When no row matches it reads the
// book to tell a missing, deleted or concurrently changed book apart.
func (s *PostgresStore) update(ctx context.Context, span trace.Span, id string, from Status, query string, args ...interface{}) (*Book, error) {
	book := &Book{}
	err := s.db.GetContext(ctx, book, query, args...)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update book status: %w", err)
	}

	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == StatusDeleted {
		return nil, fmt.Errorf("%w: %s", ErrBookDeleted, id)
	}

	span.SetAttributes(attribute.Bool("conflict.detected", true))
	return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, id, current.Status, from)
}
