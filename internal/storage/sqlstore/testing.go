package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
)

// NewTestStore opens a fresh SQLite store in a per-test directory with the
// schema applied. A file is used instead of :memory: so every pooled
// connection sees the same database.
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lending.db")
	s, err := Open(context.Background(), DriverSQLite, path)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}
