package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/hotel-frontdesk/internal/persistence"
	"github.com/example/hotel-frontdesk/internal/persistence/memory"
	"github.com/example/hotel-frontdesk/internal/persistence/sqlite"
	"github.com/example/hotel-frontdesk/internal/persistence/sqlite/migration"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary directory.
// The store is closed when the test ends.
func NewSQLiteStore(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "frontdesk.db")
	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path), nil)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = storage.Close() })

	require.NoError(tb, storage.Migrate(context.Background()))
	return storage
}

// StoreFactory names a store implementation for table driven tests.
type StoreFactory struct {
	Name string
	New  func(tb testing.TB) persistence.Store
}

// Stores returns a factory for every persistence backend.
func Stores() []StoreFactory {
	return []StoreFactory{
		{Name: "memory", New: func(testing.TB) persistence.Store { return memory.Open() }},
		{Name: "sqlite", New: func(tb testing.TB) persistence.Store { return NewSQLiteStore(tb) }},
	}
}
