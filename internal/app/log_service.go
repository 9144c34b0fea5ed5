package app

import (
	"context"
	"fmt"

	"github.com/example/reelforge/internal/ports/primary"
	"github.com/example/reelforge/internal/ports/secondary"
)

// LogServiceImpl implements the LogService interface.
type LogServiceImpl struct {
	logReader secondary.AuditLogReader
}

// NewLogService creates a new LogService with injected dependencies.
func NewLogService(logReader secondary.AuditLogReader) *LogServiceImpl {
	return &LogServiceImpl{
		logReader: logReader,
	}
}

// ListEntityLog retrieves the audit entries of one entity.
func (s *LogServiceImpl) ListEntityLog(ctx context.Context, entityType, entityID string) ([]*primary.LogEntry, error) {
	records, err := s.logReader.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}

	entries := make([]*primary.LogEntry, len(records))
	for i, r := range records {
		entries[i] = recordToLogEntry(r)
	}
	return entries, nil
}

func recordToLogEntry(r *secondary.AuditEntry) *primary.LogEntry {
	return &primary.LogEntry{
		ActorID:    r.ActorID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Action:     r.Action,
		FieldName:  r.FieldName,
		OldValue:   r.OldValue,
		NewValue:   r.NewValue,
		CreatedAt:  r.CreatedAt,
	}
}

// Ensure LogServiceImpl implements the interface
var _ primary.LogService = (*LogServiceImpl)(nil)
