package db

// SchemaSQL is the complete schema for a fresh reelforge database.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(). If repository code references a column that
// doesn't exist here, tests fail immediately with "no such column".
const SchemaSQL = baseSchemaSQL + `
CREATE UNIQUE INDEX IF NOT EXISTS idx_publish_records_task_account ON publish_records(task_id, account_id);
`

// baseSchemaSQL is the schema created by migration 1.
const baseSchemaSQL = `
-- Pipeline tasks (one row per execution context)
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	pipeline_type TEXT NOT NULL,
	creator_id TEXT,
	content_id TEXT,
	status TEXT NOT NULL CHECK(status IN ('pending', 'running', 'completed', 'failed', 'cancelled')) DEFAULT 'pending',
	current_stage TEXT,
	failed_stage TEXT,
	error_message TEXT,
	params_json TEXT NOT NULL DEFAULT '{}',
	outputs_json TEXT NOT NULL DEFAULT '[]',
	stage_log_json TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);

-- Publish records (one per task x account)
CREATE TABLE IF NOT EXISTS publish_records (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	account_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending', 'uploading', 'success', 'failed', 'cancelled')) DEFAULT 'pending',
	title TEXT,
	description TEXT,
	content_path TEXT,
	result_url TEXT,
	error_message TEXT,
	seq INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	published_at DATETIME,
	FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_publish_records_task ON publish_records(task_id);

-- Audit log of entity changes
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id TEXT,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update', 'delete')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id);
`

// GetSchemaSQL returns the authoritative schema.
func GetSchemaSQL() string {
	return SchemaSQL
}
