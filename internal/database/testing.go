package database

import (
	"context"
	"path/filepath"
	"testing"
)

// NewTestDatabase opens a database in a temporary directory that is closed
// when the test ends.
func NewTestDatabase(tb testing.TB) *DB {
	tb.Helper()
	db, err := NewFromEnv(context.Background(), &Config{FileName: filepath.Join(tb.TempDir(), "test.db"), NoSync: true})
	if err != nil {
		tb.Fatalf("unable open test database: %v", err)
	}
	tb.Cleanup(func() {
		if err := db.Close(context.Background()); err != nil {
			tb.Errorf("unable close test database: %v", err)
		}
	})
	return db
}
