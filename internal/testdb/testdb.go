// Package testdb provides an in-memory SQLite database for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/helixml/vidembed/internal/database"
)

// New creates an in-memory SQLite database that is closed when the test finishes.
// Callers migrate the models they need.
func New(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:", nil)
	if err != nil {
		t.Fatalf("testdb.New: open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
