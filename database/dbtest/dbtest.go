// Package dbtest opens throwaway migrated SQLite stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/billbatista/acasinha-chores/database"
)

// Open returns a migrated SQLite database in t's temp dir.
func Open(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
