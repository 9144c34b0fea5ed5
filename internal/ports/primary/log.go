package primary

import "context"

// LogService defines the primary port for reading the audit trail.
type LogService interface {
	// ListEntityLog retrieves the audit entries of one entity, oldest first.
	ListEntityLog(ctx context.Context, entityType, entityID string) ([]*LogEntry, error)
}

// LogEntry represents an audit log entry at the port boundary.
type LogEntry struct {
	ActorID    string `json:"actor_id,omitempty"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"` // 'create', 'update', 'delete'
	FieldName  string `json:"field_name,omitempty"`
	OldValue   string `json:"old_value,omitempty"`
	NewValue   string `json:"new_value,omitempty"`
	CreatedAt  string `json:"created_at"`
}
