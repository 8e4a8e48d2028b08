package testutil

import (
	"path/filepath"
	"testing"

	"qvcs-go/internal/database"
)

// NewTestDatabase creates a migrated SQLite database in a temp directory.
// A file database (rather than ":memory:") lets one session hold a
// transaction bracket while other sessions keep reading.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), "qvcs.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
