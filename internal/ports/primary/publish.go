package primary

import (
	"context"
	"time"
)

// PublishService defines the primary port for publish fan-out and tracking.
type PublishService interface {
	// FanOut creates one pending record per new account and dispatches uploads.
	FanOut(ctx context.Context, req FanOutRequest) ([]*PublishRecord, error)

	// GetPublishStatus recomputes the status distribution of a task's records.
	GetPublishStatus(ctx context.Context, taskID string) (*PublishStatus, error)

	// RetryPublish moves a failed or cancelled record back to pending.
	RetryPublish(ctx context.Context, publishID string) (*PublishActionResponse, error)

	// CancelPublish cancels a record that has not succeeded.
	CancelPublish(ctx context.Context, publishID string) (*PublishActionResponse, error)

	// DeletePublish removes a single record.
	DeletePublish(ctx context.Context, publishID string) (*PublishActionResponse, error)

	// ProcessUpload drives one pending record through its upload.
	ProcessUpload(ctx context.Context, publishID string) error
}

// FanOutRequest contains parameters for fanning out a task result.
type FanOutRequest struct {
	TaskID     string   `json:"task_id" validate:"required"`
	AccountIDs []string `json:"account_ids" validate:"required,min=1,dive,required"`
}

// PublishRecord is the public view of a publish record.
type PublishRecord struct {
	PublishID    string     `json:"publish_id"`
	TaskID       string     `json:"task_id"`
	AccountID    string     `json:"account_id"`
	Status       string     `json:"status"`
	Title        string     `json:"title,omitempty"`
	ContentPath  string     `json:"content_path,omitempty"`
	ResultURL    string     `json:"youtube_video_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// PublishStatusCounts mirrors the derived per-status counts.
type PublishStatusCounts struct {
	Total     int `json:"total"`
	Success   int `json:"success"`
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// PublishStatus is the publish view of one task.
type PublishStatus struct {
	TaskID            string              `json:"task_id"`
	Counts            PublishStatusCounts `json:"publish_status"`
	Summary           string              `json:"publish_summary"`
	PublishedAccounts []*PublishRecord    `json:"published_accounts"`
}

// PublishActionResponse acknowledges a single-record operation.
type PublishActionResponse struct {
	Message   string `json:"message"`
	PublishID string `json:"publish_id"`
}
