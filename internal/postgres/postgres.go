// Package postgres opens the shared database handle and applies the schema
// used by the catalog, membership and circulation stores.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres error codes the stores react to.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// ConstraintOneOpenBorrowing allows at most one BORROWED row per book.
const ConstraintOneOpenBorrowing = "borrowings_one_open_per_book"

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL CHECK (status IN ('AVAILABLE', 'BORROWED', 'DELETED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS members (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL CHECK (status IN ('ACTIVE', 'PASSIVE', 'SUSPENDED', 'DELETED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS borrowings (
	id          TEXT PRIMARY KEY,
	book_id     TEXT NOT NULL REFERENCES books (id),
	patron_id   TEXT NOT NULL,
	borrowed_at TIMESTAMPTZ NOT NULL,
	due_at      TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ,
	status      TEXT NOT NULL CHECK (status IN ('BORROWED', 'RETURNED')),
	CHECK (due_at > borrowed_at),
	CHECK ((status = 'RETURNED') = (returned_at IS NOT NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS ` + ConstraintOneOpenBorrowing + `
	ON borrowings (book_id) WHERE status = 'BORROWED';
CREATE INDEX IF NOT EXISTS borrowings_patron_idx ON borrowings (patron_id);
CREATE INDEX IF NOT EXISTS borrowings_due_idx ON borrowings (due_at);
`

// Open connects to dsn with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// IsCode reports whether err is a Postgres error with the given SQLSTATE code.
func IsCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

// Constraint returns the name of the constraint a Postgres error violated,
// or "" if err is not a constraint violation.
func Constraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
