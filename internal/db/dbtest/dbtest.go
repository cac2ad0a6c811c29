// Package dbtest provides store fixtures for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/eaglebank/authorization-service/internal/db"
)

// OpenSQLite opens a SQLite write/read pool pair in t.TempDir(), runs all
// migrations and registers cleanup.
func OpenSQLite(t *testing.T) *db.Stores {
	t.Helper()

	stores, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = stores.Close() })

	if err := db.RunMigrations(stores.Write, db.DriverSQLite); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return stores
}
