// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/reelforge/internal/ports/secondary"
)

// TaskRepository implements secondary.TaskRepository with SQLite.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskSelectCols = "id, pipeline_type, creator_id, content_id, status, current_stage, failed_stage, error_message, params_json, outputs_json, stage_log_json, created_at, updated_at, completed_at"

// scanTask scans a task row into a TaskRecord.
func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*secondary.TaskRecord, error) {
	var (
		creatorID    sql.NullString
		contentID    sql.NullString
		currentStage sql.NullString
		failedStage  sql.NullString
		errMsg       sql.NullString
		completedAt  sql.NullTime
	)

	record := &secondary.TaskRecord{}
	err := scanner.Scan(
		&record.ID, &record.PipelineType, &creatorID, &contentID, &record.Status,
		&currentStage, &failedStage, &errMsg,
		&record.ParamsJSON, &record.OutputsJSON, &record.StageLogJSON,
		&record.CreatedAt, &record.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	record.CreatorID = creatorID.String
	record.ContentID = contentID.String
	record.CurrentStage = currentStage.String
	record.FailedStage = failedStage.String
	record.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}

	return record, nil
}

// Create persists a new task.
func (r *TaskRepository) Create(ctx context.Context, task *secondary.TaskRecord) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, pipeline_type, creator_id, content_id, status, current_stage, failed_stage, error_message,
			params_json, outputs_json, stage_log_json, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.PipelineType, nullString(task.CreatorID), nullString(task.ContentID), task.Status,
		nullString(task.CurrentStage), nullString(task.FailedStage), nullString(task.ErrorMessage),
		jsonOr(task.ParamsJSON, "{}"), jsonOr(task.OutputsJSON, "[]"), jsonOr(task.StageLogJSON, "[]"),
		task.CreatedAt.UTC(), task.UpdatedAt, nullTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*secondary.TaskRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskSelectCols+" FROM tasks WHERE id = ?",
		id,
	)

	record, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return record, nil
}

// Update overwrites the mutable state of an existing task, optionally only
// while its stored status is one of from.
func (r *TaskRepository) Update(ctx context.Context, task *secondary.TaskRecord, from ...string) error {
	task.UpdatedAt = time.Now().UTC()

	query := `UPDATE tasks SET creator_id = ?, content_id = ?, status = ?, current_stage = ?, failed_stage = ?, error_message = ?,
			params_json = ?, outputs_json = ?, stage_log_json = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`
	args := []any{
		nullString(task.CreatorID), nullString(task.ContentID), task.Status,
		nullString(task.CurrentStage), nullString(task.FailedStage), nullString(task.ErrorMessage),
		jsonOr(task.ParamsJSON, "{}"), jsonOr(task.OutputsJSON, "[]"), jsonOr(task.StageLogJSON, "[]"),
		task.UpdatedAt, nullTime(task.CompletedAt),
		task.ID,
	}
	if len(from) > 0 {
		query += " AND status IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ") + ")"
		for _, s := range from {
			args = append(args, s)
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		if len(from) > 0 {
			if _, err := r.GetByID(ctx, task.ID); err != nil {
				return err
			}
			return fmt.Errorf("task %s: %w", task.ID, secondary.ErrStaleStatus)
		}
		return fmt.Errorf("task %s %w", task.ID, secondary.ErrNotFound)
	}

	return nil
}

// CompareAndSetStatus moves a task to `to` only while its status is one of `from`.
func (r *TaskRepository) CompareAndSetStatus(ctx context.Context, id string, from []string, to string) error {
	if len(from) == 0 {
		return fmt.Errorf("compare-and-set on task %s needs at least one expected status", id)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	query := "UPDATE tasks SET status = ?, updated_at = ?"
	args := []any{to, time.Now().UTC()}
	if to == "running" {
		query += ", completed_at = NULL"
	} else if to == "cancelled" || to == "failed" || to == "completed" {
		query += ", completed_at = ?"
		args = append(args, time.Now().UTC())
	}
	query += " WHERE id = ? AND status IN (" + placeholders + ")"
	args = append(args, id)
	for _, s := range from {
		args = append(args, s)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("task %s: %w", id, secondary.ErrStaleStatus)
	}

	return nil
}

// Delete removes a task from persistence.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("task %s %w", id, secondary.ErrNotFound)
	}

	return nil
}

// List retrieves tasks matching the given filters, newest first.
func (r *TaskRepository) List(ctx context.Context, filters secondary.TaskFilters) ([]*secondary.TaskRecord, error) {
	query := "SELECT " + taskSelectCols + " FROM tasks WHERE 1=1"
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	if filters.PipelineType != "" {
		query += " AND pipeline_type = ?"
		args = append(args, filters.PipelineType)
	}

	query += " ORDER BY created_at DESC, id ASC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*secondary.TaskRecord
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, record)
	}

	return tasks, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func jsonOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
