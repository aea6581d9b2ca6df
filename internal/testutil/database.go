package testutil

import (
	"testing"

	"autoinspect/internal/database"
	"autoinspect/internal/inspection"
)

// NewTestDatabase creates a migrated in-memory SQLite database that is
// closed when the test completes. clock may be nil.
func NewTestDatabase(t *testing.T, clock inspection.Clock) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
