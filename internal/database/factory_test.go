package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qvcs-go/internal/config"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	t.Run("memory database is migrated", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"}, "test-server")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("memory database reads while a transaction is open", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"}, "test-server")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		path := got.path

		ctx := context.Background()
		if _, err := got.InsertProject(ctx, "P"); err != nil {
			t.Fatalf("InsertProject() error = %v", err)
		}
		tx, err := got.BeginTx(ctx)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.InsertProject(ctx, "Q"); err != nil {
			t.Fatalf("tx.InsertProject() error = %v", err)
		}

		readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		p, err := got.FindProjectByName(readCtx, "P")
		if err != nil {
			t.Fatalf("FindProjectByName() with open transaction error = %v", err)
		}
		if p == nil {
			t.Error("FindProjectByName() = nil, want project P")
		}

		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
		if err := got.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
			t.Errorf("Stat(%s) error = %v, want not exist after Close", filepath.Dir(path), err)
		}
	})

	t.Run("sqlite database without auto_migrate is unmigrated", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()}
		got, err := NewDatabaseFromConfig(cfg, "test-server")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		defer got.Close()

		err = got.CheckMigrations()
		if !IsUnmigrated(err) {
			t.Errorf("CheckMigrations() error = %v, want unmigrated", err)
		}
	})

	t.Run("sqlite database with auto_migrate", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir(), AutoMigrate: true}
		got, err := NewDatabaseFromConfig(cfg, "test-server")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
		if _, err := got.InsertProject(context.Background(), "P"); err != nil {
			t.Errorf("InsertProject() error = %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "sqlite"}, "test-server")
		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(config.DatabaseConfig{Type: "unknown"}, "test-server")
		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for unknown type, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})
}
