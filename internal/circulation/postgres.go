package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookloan/internal/apperr"
	"bookloan/internal/postgres"
)

const (
	tableBorrowings = "borrowings"
	colID           = "id"
	colBookID       = "book_id"
	colPatronID     = "patron_id"
	colBorrowedAt   = "borrowed_at"
	colDueAt        = "due_at"
	colReturnedAt   = "returned_at"
	colStatus       = "status"

	borrowingColumns = "id, book_id, patron_id, borrowed_at, due_at, returned_at, status"
)

var dialect = goqu.Dialect("postgres")

// PostgresRepository persists borrowings in the borrowings table. At most one
// BORROWED row may exist per book.
type PostgresRepository struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		tracer: otel.Tracer("bookloan/circulation"),
	}
}

func (r *PostgresRepository) Create(ctx context.Context, b *Borrowing) error {
	ctx, span := r.tracer.Start(ctx, "circulation.repository.create",
		trace.WithAttributes(
			attribute.String("borrowing.id", b.ID),
			attribute.String("book.id", b.BookID),
		),
	)
	defer span.End()

	query := `
		INSERT INTO borrowings (id, book_id, patron_id, borrowed_at, due_at, returned_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, b.ID, b.BookID, b.PatronID, b.BorrowedAt, b.DueAt, b.ReturnedAt, string(b.Status))
	if err != nil {
		switch {
		case postgres.Constraint(err) == postgres.ConstraintOneOpenBorrowing:
			return fmt.Errorf("%w: %s has an open borrowing", ErrBookNotAvailable, b.BookID)
		case postgres.IsCode(err, postgres.CodeForeignKeyViolation):
			return fmt.Errorf("book %w: %s", apperr.ErrNotFound, b.BookID)
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert borrowing: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Borrowing, error) {
	ctx, span := r.tracer.Start(ctx, "circulation.repository.get",
		trace.WithAttributes(attribute.String("borrowing.id", id)),
	)
	defer span.End()

	b := &Borrowing{}
	err := r.db.GetContext(ctx, b, `SELECT `+borrowingColumns+` FROM borrowings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBorrowingNotFound, id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get borrowing: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) MarkReturned(ctx context.Context, id string, at time.Time) (*Borrowing, error) {
	ctx, span := r.tracer.Start(ctx, "circulation.repository.mark_returned",
		trace.WithAttributes(attribute.String("borrowing.id", id)),
	)
	defer span.End()

	query := `
		UPDATE borrowings
		SET status = 'RETURNED', returned_at = $1
		WHERE id = $2 AND status = 'BORROWED'
		RETURNING ` + borrowingColumns
	b := &Borrowing{}
	err := r.db.GetContext(ctx, b, query, at, id)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to mark borrowing returned: %w", err)
	}

	// Nothing matched: either the record is gone or it was already returned.
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrAlreadyReturned
}

func (r *PostgresRepository) Discard(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "circulation.repository.discard",
		trace.WithAttributes(attribute.String("borrowing.id", id)),
	)
	defer span.End()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM borrowings WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to discard borrowing: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Search(ctx context.Context, filter Filter, page Page) ([]*Borrowing, int, error) {
	ctx, span := r.tracer.Start(ctx, "circulation.repository.search")
	defer span.End()

	items, total, err := r.selectPage(ctx, filterExpressions(filter), page)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to search borrowings: %w", err)
	}
	span.SetAttributes(attribute.Int("borrowings.total", total))
	return items, total, nil
}

func (r *PostgresRepository) Overdue(ctx context.Context, now time.Time, page Page) ([]*Borrowing, int, error) {
	ctx, span := r.tracer.Start(ctx, "circulation.repository.overdue")
	defer span.End()

	overdue := goqu.Or(
		goqu.And(
			goqu.C(colStatus).Eq(string(StatusBorrowed)),
			goqu.C(colDueAt).Lt(now),
		),
		goqu.And(
			goqu.C(colStatus).Eq(string(StatusReturned)),
			goqu.C(colReturnedAt).Gt(goqu.C(colDueAt)),
		),
	)
	items, total, err := r.selectPage(ctx, []exp.Expression{overdue}, page)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to list overdue borrowings: %w", err)
	}
	span.SetAttributes(attribute.Int("borrowings.total", total))
	return items, total, nil
}

// selectPage counts the rows matching where and loads the requested page,
// ordered by borrowed_at then id.
func (r *PostgresRepository) selectPage(ctx context.Context, where []exp.Expression, page Page) ([]*Borrowing, int, error) {
	page = page.Normalize()
	base := dialect.From(tableBorrowings).Where(where...)

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}
	if total == 0 || page.Offset() >= total {
		return nil, total, nil
	}

	listSQL, listArgs, err := base.
		Select(colID, colBookID, colPatronID, colBorrowedAt, colDueAt, colReturnedAt, colStatus).
		Order(goqu.C(colBorrowedAt).Asc(), goqu.C(colID).Asc()).
		Limit(uint(page.Size)).
		Offset(uint(page.Offset())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build select query: %w", err)
	}
	var items []*Borrowing
	if err := r.db.SelectContext(ctx, &items, listSQL, listArgs...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func filterExpressions(f Filter) []exp.Expression {
	var where []exp.Expression
	if f.PatronID != "" {
		where = append(where, goqu.C(colPatronID).Eq(f.PatronID))
	}
	if f.BookID != "" {
		where = append(where, goqu.C(colBookID).Eq(f.BookID))
	}
	if f.Status != "" {
		where = append(where, goqu.C(colStatus).Eq(string(f.Status)))
	}
	if f.BorrowedFrom != nil {
		where = append(where, goqu.C(colBorrowedAt).Gte(*f.BorrowedFrom))
	}
	if f.BorrowedTo != nil {
		where = append(where, goqu.C(colBorrowedAt).Lte(*f.BorrowedTo))
	}
	if f.DueFrom != nil {
		where = append(where, goqu.C(colDueAt).Gte(*f.DueFrom))
	}
	if f.DueTo != nil {
		where = append(where, goqu.C(colDueAt).Lte(*f.DueTo))
	}
	return where
}
