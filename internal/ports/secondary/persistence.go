// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"
)

// TaskRepository defines the secondary port for pipeline task persistence.
type TaskRepository interface {
	// Create persists a new task.
	Create(ctx context.Context, task *TaskRecord) error

	// GetByID retrieves a task by its ID.
	GetByID(ctx context.Context, id string) (*TaskRecord, error)

	// Update overwrites the mutable state of an existing task. When from is
	// given, the write applies only while the stored status is one of from;
	// otherwise it returns an error wrapping ErrStaleStatus.
	Update(ctx context.Context, task *TaskRecord, from ...string) error

	// CompareAndSetStatus moves a task to status `to` only if its current
	// status is one of `from`. Returns an error wrapping ErrStaleStatus otherwise.
	CompareAndSetStatus(ctx context.Context, id string, from []string, to string) error

	// Delete removes a task from persistence.
	Delete(ctx context.Context, id string) error

	// List retrieves tasks matching the given filters, newest first.
	List(ctx context.Context, filters TaskFilters) ([]*TaskRecord, error)
}

// TaskRecord represents a pipeline task as stored in persistence.
// JSON columns hold the opaque parts of the pipeline context.
type TaskRecord struct {
	ID           string
	PipelineType string
	CreatorID    string // Empty string means null
	ContentID    string // Empty string means null - resolved by acquisition
	Status       string // pending, running, completed, failed, cancelled
	CurrentStage string
	FailedStage  string
	ErrorMessage string
	ParamsJSON   string
	OutputsJSON  string // ordered [{stage, payload}]
	StageLogJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// TaskFilters contains filter options for querying tasks.
type TaskFilters struct {
	Status       string
	PipelineType string
	Limit        int
}

// PublishRepository defines the secondary port for publish record persistence.
type PublishRepository interface {
	// CreateBatch persists all records of one fan-out atomically.
	CreateBatch(ctx context.Context, records []*PublishRecord) error

	// GetByID retrieves a publish record by its ID.
	GetByID(ctx context.Context, id string) (*PublishRecord, error)

	// ListByTask retrieves the live records of a task in creation order.
	ListByTask(ctx context.Context, taskID string) ([]*PublishRecord, error)

	// UpdateStatus applies a compare-and-set status change on one record.
	UpdateStatus(ctx context.Context, update PublishStatusUpdate) error

	// Delete removes one record.
	Delete(ctx context.Context, id string) error

	// DeleteByTask removes every record of a task.
	DeleteByTask(ctx context.Context, taskID string) error
}

// PublishRecord represents one publish target as stored in persistence.
type PublishRecord struct {
	ID           string
	TaskID       string
	AccountID    string
	Status       string // pending, uploading, success, failed, cancelled
	Title        string
	Description  string
	ContentPath  string
	ResultURL    string // Empty string means null
	ErrorMessage string // Empty string means null
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PublishedAt  *time.Time
}

// PublishStatusUpdate describes a guarded status change.
// The update applies only while the stored status equals From.
type PublishStatusUpdate struct {
	ID           string
	From         string
	To           string
	ResultURL    string
	ErrorMessage string
	PublishedAt  *time.Time
}
