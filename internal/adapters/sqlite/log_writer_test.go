package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/reelforge/internal/adapters/sqlite"
	"github.com/example/reelforge/internal/ctxutil"
)

func TestLogWriterAdapter_RecordsActor(t *testing.T) {
	db := setupTestDB(t)
	w := sqlite.NewLogWriterAdapter(db)
	ctx := ctxutil.WithActorID(context.Background(), "cli")

	if err := w.LogCreate(ctx, "task", "task-001"); err != nil {
		t.Fatalf("LogCreate failed: %v", err)
	}
	if err := w.LogUpdate(ctx, "task", "task-001", "status", "pending", "running"); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}
	if err := w.LogDelete(context.Background(), "task", "task-001"); err != nil {
		t.Fatalf("LogDelete failed: %v", err)
	}

	entries, err := w.ListByEntity(context.Background(), "task", "task-001")
	if err != nil {
		t.Fatalf("ListByEntity failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Action != "create" || entries[0].ActorID != "cli" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].FieldName != "status" || entries[1].OldValue != "pending" || entries[1].NewValue != "running" {
		t.Errorf("unexpected update entry: %+v", entries[1])
	}
	if entries[2].ActorID != "" {
		t.Errorf("expected no actor on delete, got %q", entries[2].ActorID)
	}
}
