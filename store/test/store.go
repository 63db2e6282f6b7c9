package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ITHealer/book-m-ai/internal/profile"
	"github.com/ITHealer/book-m-ai/store"
	"github.com/ITHealer/book-m-ai/store/db"
)

// NewTestingStore creates a migrated store for the driver named by the DRIVER
// environment variable (sqlite by default). PostgreSQL requires POSTGRES_TEST_DSN
// and the test is skipped without it.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	if getDriverFromEnv() == "postgres" {
		dsn := os.Getenv("POSTGRES_TEST_DSN")
		if dsn == "" {
			t.Skip("POSTGRES_TEST_DSN is not set")
		}
		ts := newStore(ctx, t, &profile.Profile{Mode: "dev", Driver: "postgres", DSN: dsn})
		resetPostgres(ctx, t, ts)
		return ts
	}
	return NewSQLiteTestingStore(ctx, t)
}

// NewSQLiteTestingStore creates a migrated SQLite store in a temporary directory.
func NewSQLiteTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	return newStore(ctx, t, &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   dir,
		DSN:    filepath.Join(dir, "healer_test.db"),
	})
}

func newStore(ctx context.Context, t *testing.T, p *profile.Profile) *store.Store {
	t.Helper()
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	ts := store.New(driver, p)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		ts.Close()
	})
	return ts
}

func resetPostgres(ctx context.Context, t *testing.T, ts *store.Store) {
	t.Helper()
	stmt := "TRUNCATE bookmark_embedding, bookmark_tag, tag, bookmark, duplicate_group RESTART IDENTITY CASCADE"
	if _, err := ts.GetDriver().GetDB().ExecContext(ctx, stmt); err != nil {
		t.Fatalf("failed to reset postgres: %v", err)
	}
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
