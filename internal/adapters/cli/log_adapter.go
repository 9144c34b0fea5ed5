package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/reelforge/internal/ports/primary"
)

// LogAdapter prints the audit trail of an entity.
type LogAdapter struct {
	service primary.LogService
	out     io.Writer
}

// NewLogAdapter creates a new LogAdapter with the given service.
func NewLogAdapter(service primary.LogService, out io.Writer) *LogAdapter {
	return &LogAdapter{service: service, out: out}
}

// Show prints every audit entry of an entity, oldest first.
func (a *LogAdapter) Show(ctx context.Context, entityType, entityID string) error {
	entries, err := a.service.ListEntityLog(ctx, entityType, entityID)
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintf(a.out, "No log entries for %s %s\n", entityType, entityID)
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-8s %-8s", e.CreatedAt, e.ActorID, e.Action)
		if e.FieldName != "" {
			line += fmt.Sprintf(" %s: %q → %q", e.FieldName, e.OldValue, e.NewValue)
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}
