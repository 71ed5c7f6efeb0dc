// Package testdb opens migrated SQLite databases for package tests.
package testdb

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hodie-labs/ingest/internal/migrations"
	"github.com/hodie-labs/ingest/pkg/database"
)

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Open creates a SQLite database in a per-test directory, applies all
// migrations, and closes it when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	cfg := &database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "ingest.db"),
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize sqlite config: %v", err)
	}

	sys, err := database.New(cfg, Logger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sys.Close() })

	db := sys.Connection()
	if err := migrations.Up(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
