package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/persistence/memory"
	"github.com/example/pocketcal/internal/persistence/sqlite"
)

// NewSQLiteStorage opens a migrated SQLite storage in a temporary directory.
// The storage is closed when the test finishes.
func NewSQLiteStorage(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "pocketcal.db")
	storage, err := sqlite.Open(sqlite.Config{Path: path}, nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })
	return storage
}

// Backend names a storage implementation for table-driven tests.
type Backend struct {
	Name string
	Open func(tb testing.TB) persistence.Storage
}

// Backends returns every storage implementation so repository contracts can
// be checked against each of them.
func Backends() []Backend {
	return []Backend{
		{Name: "memory", Open: func(testing.TB) persistence.Storage { return memory.Open() }},
		{Name: "sqlite", Open: func(tb testing.TB) persistence.Storage { return NewSQLiteStorage(tb) }},
	}
}
