// Package testing holds fixtures shared by package tests.
package testing

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/metagen/cache"
)

// CreateTestStore creates a migrated in-memory translation cache.
// Automatically registers cleanup via t.Cleanup().
func CreateTestStore(t *testing.T) *cache.Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)

	if err := cache.Migrate(db, nil); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	store := cache.NewStore(db, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// WriteTree writes files (relative path -> content) under a fresh temp dir
// and returns the dir.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	return dir
}
