package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
)

// OpenTestDB connects to the database described by the standard PG*
// environment variables, applies the schema and empties the tables. The test
// is skipped when no database is reachable.
func OpenTestDB(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("PGHOST", "localhost"),
		envOr("PGPORT", "5432"),
		envOr("PGUSER", "user"),
		envOr("PGPASSWORD", "password"),
		envOr("PGDATABASE", "testdb"),
	)

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("skipping postgres tests: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE borrowings, books, members CASCADE"); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}

	return db
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
