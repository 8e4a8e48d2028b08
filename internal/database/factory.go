package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"qvcs-go/internal/config"
	"qvcs-go/internal/database/migrations"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// A memory database is migrated immediately since it starts empty on every
// run. A file database must be at the latest schema version unless
// auto_migrate is set.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, serverID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, serverID+".db"))
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.MigrateUp(); err != nil {
				db.Close()
				return nil, err
			}
		}
		return db, nil
	case "memory":
		db, err := newEphemeralDatabase(serverID)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// IsUnmigrated reports whether err says the database has no schema at all.
func IsUnmigrated(err error) bool {
	return errors.Is(err, migrations.ErrNoSchema)
}

// newEphemeralDatabase opens a database file in a fresh temporary directory
// that Close removes. Unlike ":memory:", which is limited to one connection,
// it lets one session hold a transaction bracket while others keep reading.
func newEphemeralDatabase(serverID string) (*SQLiteDatabase, error) {
	dir, err := os.MkdirTemp("", "qvcsd-memory-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	db, err := NewSQLiteDatabase(filepath.Join(dir, serverID+".db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	db.tempDir = dir
	return db, nil
}
