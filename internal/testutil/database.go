// Package testutil provides database helpers for integration tests. Tests
// that call SetupTestDB skip unless TEST_POSTGRES_DSN points at a reachable
// Postgres with the pgvector extension installed.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/substrate-hq/substrate/migrations"
)

var (
	migrateOnce sync.Once
	migrateErr  error
)

// SetupTestDB opens the database named by TEST_POSTGRES_DSN, applies pending
// migrations once per process, and truncates every ont table so the test
// starts from a clean slate. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("database unreachable: %v", err)
	}

	migrateOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		if migrateErr = goose.SetDialect("postgres"); migrateErr != nil {
			return
		}
		migrateErr = goose.UpContext(ctx, db.DB, ".")
	})
	if migrateErr != nil {
		t.Fatalf("apply migrations: %v", migrateErr)
	}

	if err := resetTables(ctx, db); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return db
}

func resetTables(ctx context.Context, db *bun.DB) error {
	_, err := db.NewRaw(`
		TRUNCATE TABLE
			ont.knowledge,
			ont.connection_orderings,
			ont.connections,
			ont.events,
			ont.things,
			ont.memberships,
			ont.group_usage,
			ont.type_registry,
			ont.groups
		CASCADE
	`).Exec(ctx)
	return err
}
