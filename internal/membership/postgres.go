package membership

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

const memberColumns = "id, email, name, status, created_at, updated_at"

// PostgresStore persists members in the members table.
type PostgresStore struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("bookloan/membership"),
	}
}

func (s *PostgresStore) Create(ctx context.Context, m *Member) error {
	ctx, span := s.tracer.Start(ctx, "membership.store.create",
		trace.WithAttributes(attribute.String("member.id", m.ID)),
	)
	defer span.End()

	query := `
		INSERT INTO members (id, email, name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowxContext(ctx, query, m.ID, m.Email, m.Name, string(m.Status)).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if postgres.IsCode(err, postgres.CodeUniqueViolation) {
			return fmt.Errorf("%w: %s", ErrMemberExists, m.ID)
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.store.get",
		trace.WithAttributes(attribute.String("member.id", id)),
	)
	defer span.End()

	m := &Member{}
	err := s.db.GetContext(ctx, m, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.store.set_status",
		trace.WithAttributes(
			attribute.String("member.id", id),
			attribute.String("status", string(status)),
		),
	)
	defer span.End()

	query := `
		UPDATE members
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + memberColumns
	m := &Member{}
	if err := s.db.GetContext(ctx, m, query, string(status), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update member status: %w", err)
	}
	return m, nil
}
