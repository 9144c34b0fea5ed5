// Package primary defines the primary ports (driving adapters) for the application.
// CLI and HTTP adapters depend only on these interfaces.
package primary

import (
	"context"
	"time"
)

// TaskService defines the primary port for pipeline task operations.
type TaskService interface {
	// CreateTask persists a task and starts its execution in the background.
	CreateTask(ctx context.Context, req CreateTaskRequest) (*CreateTaskResponse, error)

	// ExecuteTask runs a pending task synchronously and returns its result.
	ExecuteTask(ctx context.Context, taskID string) (*TaskResult, error)

	// ResumeTask restarts a failed or cancelled task in the background,
	// skipping stages whose outputs already exist.
	ResumeTask(ctx context.Context, taskID string) error

	// CancelTask stops a task before its next stage starts.
	CancelTask(ctx context.Context, taskID string) error

	// GetTaskStatus returns the polling view of a task.
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)

	// GetTaskResult returns the stage outputs of a task.
	GetTaskResult(ctx context.Context, taskID string) (*TaskResult, error)

	// ListTasks lists tasks with their live publish summary.
	ListTasks(ctx context.Context, filters TaskFilters) (*TaskList, error)

	// DeleteTask deletes a task that is not running, with its publish records.
	DeleteTask(ctx context.Context, taskID string) error
}

// CreateTaskRequest contains parameters for creating a task.
type CreateTaskRequest struct {
	PipelineType string         `json:"pipeline_type" validate:"required"`
	Params       map[string]any `json:"params"`

	// Deferred stores the task as pending without starting it.
	Deferred bool `json:"-"`
}

// CreateTaskResponse contains the result of creating a task.
type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatus is the polling view of a task.
type TaskStatus struct {
	TaskID       string            `json:"task_id"`
	PipelineType string            `json:"pipeline_type"`
	Status       string            `json:"status"`
	CurrentStage string            `json:"current_stage"`
	Progress     map[string]string `json:"progress"`
	FailedStage  string            `json:"failed_stage,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at"`
}

// TaskResult carries a task's stage outputs in execution order.
type TaskResult struct {
	TaskID      string                    `json:"task_id"`
	Status      string                    `json:"status"`
	CreatorID   string                    `json:"creator_id,omitempty"`
	ContentID   string                    `json:"content_id,omitempty"`
	Stages      []string                  `json:"stages"`
	Outputs     map[string]map[string]any `json:"outputs"`
	StageLog    []StageOutcome            `json:"stage_log"`
	FailedStage string                    `json:"failed_stage,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// StageOutcome is one executed stage.
type StageOutcome struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// TaskFilters contains filter options for listing tasks.
type TaskFilters struct {
	Status       string
	PipelineType string
	Limit        int
}

// TaskList is the list view of tasks.
type TaskList struct {
	Total int            `json:"total"`
	Tasks []*TaskSummary `json:"tasks"`
}

// TaskSummary is one row of the task list.
type TaskSummary struct {
	TaskID         string               `json:"task_id"`
	PipelineType   string               `json:"pipeline_type"`
	Status         string               `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	PublishSummary string               `json:"publish_summary,omitempty"`
	PublishStatus  *PublishStatusCounts `json:"publish_status,omitempty"`
}
