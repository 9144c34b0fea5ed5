package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/reelforge/internal/ports/secondary"
)

// PublishRepository implements secondary.PublishRepository with SQLite.
type PublishRepository struct {
	db *sql.DB
}

// NewPublishRepository creates a new SQLite publish repository.
func NewPublishRepository(db *sql.DB) *PublishRepository {
	return &PublishRepository{db: db}
}

const publishSelectCols = "id, task_id, account_id, status, title, description, content_path, result_url, error_message, created_at, updated_at, published_at"

// scanPublish scans a publish row into a PublishRecord.
func scanPublish(scanner interface {
	Scan(dest ...any) error
}) (*secondary.PublishRecord, error) {
	var (
		title       sql.NullString
		desc        sql.NullString
		contentPath sql.NullString
		resultURL   sql.NullString
		errMsg      sql.NullString
		publishedAt sql.NullTime
	)

	record := &secondary.PublishRecord{}
	err := scanner.Scan(
		&record.ID, &record.TaskID, &record.AccountID, &record.Status,
		&title, &desc, &contentPath, &resultURL, &errMsg,
		&record.CreatedAt, &record.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Title = title.String
	record.Description = desc.String
	record.ContentPath = contentPath.String
	record.ResultURL = resultURL.String
	record.ErrorMessage = errMsg.String
	if publishedAt.Valid {
		t := publishedAt.Time
		record.PublishedAt = &t
	}

	return record, nil
}

// CreateBatch persists all records of one fan-out in a single transaction.
func (r *PublishRepository) CreateBatch(ctx context.Context, records []*secondary.PublishRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO publish_records (id, task_id, account_id, status, title, description, content_path, seq, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM publish_records WHERE task_id = ?), ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare publish insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		_, err := stmt.ExecContext(ctx,
			rec.ID, rec.TaskID, rec.AccountID, rec.Status,
			nullString(rec.Title), nullString(rec.Description), nullString(rec.ContentPath),
			rec.TaskID, rec.CreatedAt.UTC(), rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create publish record for account %s: %w", rec.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish records: %w", err)
	}
	return nil
}

// GetByID retrieves a publish record by its ID.
func (r *PublishRepository) GetByID(ctx context.Context, id string) (*secondary.PublishRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+publishSelectCols+" FROM publish_records WHERE id = ?",
		id,
	)

	record, err := scanPublish(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("publish record %s %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publish record: %w", err)
	}

	return record, nil
}

// ListByTask retrieves the live records of a task in creation order.
func (r *PublishRepository) ListByTask(ctx context.Context, taskID string) ([]*secondary.PublishRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+publishSelectCols+" FROM publish_records WHERE task_id = ? ORDER BY seq ASC, created_at ASC",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish records: %w", err)
	}
	defer rows.Close()

	var records []*secondary.PublishRecord
	for rows.Next() {
		record, err := scanPublish(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publish record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// UpdateStatus applies a compare-and-set status change on one record.
// Result URL and error message are replaced on every transition.
func (r *PublishRepository) UpdateStatus(ctx context.Context, update secondary.PublishStatusUpdate) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE publish_records SET status = ?, result_url = ?, error_message = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		update.To, nullString(update.ResultURL), nullString(update.ErrorMessage), nullTime(update.PublishedAt),
		time.Now().UTC(), update.ID, update.From,
	)
	if err != nil {
		return fmt.Errorf("failed to update publish status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, update.ID); err != nil {
			return err
		}
		return fmt.Errorf("publish record %s is no longer %s: %w", update.ID, update.From, secondary.ErrStaleStatus)
	}

	return nil
}

// Delete removes one record.
func (r *PublishRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM publish_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete publish record: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("publish record %s %w", id, secondary.ErrNotFound)
	}

	return nil
}

// DeleteByTask removes every record of a task.
func (r *PublishRepository) DeleteByTask(ctx context.Context, taskID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM publish_records WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete publish records for task %s: %w", taskID, err)
	}
	return nil
}
