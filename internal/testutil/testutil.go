// Package testutil provides shared test helpers for setting up seed directories and databases.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/folio/internal/docstore"
	"github.com/starford/folio/internal/storage"
)

// TestDB creates a temporary SQLite document store that is automatically cleaned up.
func TestDB(t *testing.T, opts ...docstore.Option) *docstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := docstore.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSeedDir creates a temporary seed directory with a storage.Provider.
func TestSeedDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// MustPut stores each JSON document body or fails the test.
func MustPut(t *testing.T, db *docstore.DB, bodies ...string) {
	t.Helper()
	for _, b := range bodies {
		if _, err := db.Put(context.Background(), []byte(b)); err != nil {
			t.Fatalf("put %s: %v", b, err)
		}
	}
}
