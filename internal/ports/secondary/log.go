package secondary

import "context"

// LogWriter defines the interface for writing audit log entries.
// Implementations extract the actor from context.
type LogWriter interface {
	// LogCreate logs a create operation for an entity.
	LogCreate(ctx context.Context, entityType, entityID string) error

	// LogUpdate logs an update operation for an entity field.
	// fieldName, oldValue, newValue describe what changed.
	LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error

	// LogDelete logs a delete operation for an entity.
	LogDelete(ctx context.Context, entityType, entityID string) error
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID         int64
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	FieldName  string
	OldValue   string
	NewValue   string
	CreatedAt  string
}

// AuditLogReader lists audit entries for an entity.
type AuditLogReader interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*AuditEntry, error)
}
