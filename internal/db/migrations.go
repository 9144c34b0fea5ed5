package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_tasks_publish_records_audit_log",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "unique_publish_record_per_account",
		Up:      migrationV2,
	},
}

// RunMigrations applies every migration newer than the recorded schema
// version, each in its own transaction. It returns the applied versions.
func RunMigrations(database *sql.DB) ([]int, error) {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err = database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to get current schema version: %w", err)
	}

	var applied []int
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := database.Begin()
		if err != nil {
			return applied, fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
		applied = append(applied, migration.Version)
	}

	return applied, nil
}

// SchemaVersion returns the highest applied migration.
func SchemaVersion(database *sql.DB) (int, error) {
	var v int
	err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}

// migrationV1 creates the baseline tables.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(baseSchemaSQL)
	return err
}

// migrationV2 allows at most one publish record per (task, account).
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_publish_records_task_account ON publish_records(task_id, account_id)`)
	return err
}
