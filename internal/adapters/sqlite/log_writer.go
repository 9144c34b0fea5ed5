package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/reelforge/internal/ctxutil"
	"github.com/example/reelforge/internal/ports/secondary"
)

// LogWriterAdapter implements secondary.LogWriter and secondary.AuditLogReader
// on the audit_log table.
type LogWriterAdapter struct {
	db *sql.DB
}

// NewLogWriterAdapter creates a new LogWriterAdapter.
func NewLogWriterAdapter(db *sql.DB) *LogWriterAdapter {
	return &LogWriterAdapter{db: db}
}

// LogCreate logs a create operation for an entity.
func (w *LogWriterAdapter) LogCreate(ctx context.Context, entityType, entityID string) error {
	return w.writeLog(ctx, entityType, entityID, "create", "", "", "")
}

// LogUpdate logs an update operation for an entity field.
func (w *LogWriterAdapter) LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error {
	return w.writeLog(ctx, entityType, entityID, "update", fieldName, oldValue, newValue)
}

// LogDelete logs a delete operation for an entity.
func (w *LogWriterAdapter) LogDelete(ctx context.Context, entityType, entityID string) error {
	return w.writeLog(ctx, entityType, entityID, "delete", "", "", "")
}

func (w *LogWriterAdapter) writeLog(ctx context.Context, entityType, entityID, action, fieldName, oldValue, newValue string) error {
	actorID := ctxutil.ActorFromContext(ctx)

	_, err := w.db.ExecContext(ctx,
		`INSERT INTO audit_log (actor_id, entity_type, entity_id, action, field_name, old_value, new_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(actorID), entityType, entityID, action,
		nullString(fieldName), nullString(oldValue), nullString(newValue),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// ListByEntity returns audit entries of one entity, oldest first.
func (w *LogWriterAdapter) ListByEntity(ctx context.Context, entityType, entityID string) ([]*secondary.AuditEntry, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT id, actor_id, entity_type, entity_id, action, field_name, old_value, new_value, created_at
		FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY id ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditEntry
	for rows.Next() {
		var (
			actorID   sql.NullString
			fieldName sql.NullString
			oldValue  sql.NullString
			newValue  sql.NullString
			createdAt sql.NullString
		)
		e := &secondary.AuditEntry{}
		if err := rows.Scan(&e.ID, &actorID, &e.EntityType, &e.EntityID, &e.Action,
			&fieldName, &oldValue, &newValue, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ActorID = actorID.String
		e.FieldName = fieldName.String
		e.OldValue = oldValue.String
		e.NewValue = newValue.String
		e.CreatedAt = createdAt.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Ensure LogWriterAdapter implements the interfaces
var (
	_ secondary.LogWriter      = (*LogWriterAdapter)(nil)
	_ secondary.AuditLogReader = (*LogWriterAdapter)(nil)
)
