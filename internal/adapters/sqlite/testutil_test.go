// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Use setupTestDB() and the seed* helpers instead of
// hardcoding CREATE TABLE statements.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/reelforge/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// A single connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if err := db.InitSchema(testDB); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedTask inserts a test task and returns its ID.
func seedTask(t *testing.T, db *sql.DB, id, status string) string {
	t.Helper()
	if id == "" {
		id = "task-001"
	}
	if status == "" {
		status = "pending"
	}
	now := time.Now().UTC()
	_, err := db.Exec(
		"INSERT INTO tasks (id, pipeline_type, status, created_at, updated_at) VALUES (?, 'shorts', ?, ?, ?)",
		id, status, now, now,
	)
	if err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
	return id
}
