package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	tables := []string{"projects", "branches", "users", "commits", "tags", "directories", "files", "file_revisions", "promotions", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		err := CheckDBMigrationStatus(db)
		if !errors.Is(err, ErrNoSchema) {
			t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNoSchema", err)
		}
	})

	t.Run("up to date after migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}

		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() error = %v", err)
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() error = %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() error = %v (should be idempotent)", err)
	}

	version, dirty, err := Version(db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if version != latest || dirty {
		t.Errorf("Version() = (%d, %v), want (%d, false)", version, dirty, latest)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	_, err := db.Exec("INSERT INTO branches (project_id, name, created_at) VALUES (42, 'Trunk', datetime('now'))")
	if err == nil {
		t.Error("expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_BranchNameUniquePerProject(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	mustExec(t, db, "INSERT INTO projects (name, created_at) VALUES ('P', datetime('now'))")
	mustExec(t, db, "INSERT INTO projects (name, created_at) VALUES ('Q', datetime('now'))")
	mustExec(t, db, "INSERT INTO branches (project_id, name, created_at) VALUES (1, 'Trunk', datetime('now'))")
	mustExec(t, db, "INSERT INTO branches (project_id, name, created_at) VALUES (2, 'Trunk', datetime('now'))")

	_, err := db.Exec("INSERT INTO branches (project_id, name, created_at) VALUES (1, 'Trunk', datetime('now'))")
	if err == nil {
		t.Error("expected unique constraint violation for duplicate branch name, but insert succeeded")
	}
}

func TestSchema_CommitIDsNotReused(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	mustExec(t, db, "INSERT INTO projects (name, created_at) VALUES ('P', datetime('now'))")
	mustExec(t, db, "INSERT INTO branches (project_id, name, created_at) VALUES (1, 'Trunk', datetime('now'))")
	mustExec(t, db, "INSERT INTO users (name) VALUES ('alice')")
	mustExec(t, db, "INSERT INTO commits (user_id, branch_id, commit_date, message) VALUES (1, 1, datetime('now'), 'one')")
	mustExec(t, db, "INSERT INTO commits (user_id, branch_id, commit_date, message) VALUES (1, 1, datetime('now'), 'two')")
	mustExec(t, db, "DELETE FROM commits WHERE id = 2")
	mustExec(t, db, "INSERT INTO commits (user_id, branch_id, commit_date, message) VALUES (1, 1, datetime('now'), 'three')")

	var id int64
	if err := db.QueryRow("SELECT id FROM commits WHERE message = 'three'").Scan(&id); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if id != 3 {
		t.Errorf("commit id = %d, want 3", id)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Exec(%q) error = %v", query, err)
	}
}
