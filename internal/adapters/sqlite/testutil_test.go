// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for
// tests. All test setup uses db.GetSchemaSQL() so tests run against the
// authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use
// setupTestDB() and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/sluice/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedAgedEntry inserts a journal row with a timestamp the given number
// of days in the past. Append always stamps "now", so prune tests need
// a direct insert.
func seedAgedEntry(t *testing.T, database *sql.DB, streamID string, daysOld int) {
	t.Helper()
	_, err := database.Exec(
		"INSERT INTO journal (timestamp, stream_id, operation, outcome) VALUES (datetime('now', ?), ?, 'prepare-merge', 'clean')",
		fmt.Sprintf("-%d days", daysOld), streamID,
	)
	if err != nil {
		t.Fatalf("failed to seed aged journal entry: %v", err)
	}
}
