package secondary

import (
	"context"
	"time"
)

// ArtifactStore checks for generated artifacts. Stages only ever add
// artifacts, so concurrent readers need no coordination.
type ArtifactStore interface {
	// Exists reports whether an artifact exists at the relative path.
	Exists(ctx context.Context, path string) (bool, error)
}

// ContentDiscovery lists recent content of a creator.
type ContentDiscovery interface {
	// RecentContent returns up to maxVideos items published in the last daysBack days.
	RecentContent(ctx context.Context, creatorID string, daysBack, maxVideos int) ([]ContentItem, error)
}

// ContentItem is a discovered source video.
type ContentItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// StageBackend performs the external work of a generation stage
// (story writing, speech synthesis, draft assembly, export).
type StageBackend interface {
	// Invoke runs a stage and returns its result payload.
	Invoke(ctx context.Context, req StageRequest) (map[string]any, error)
}

// StageRequest carries everything a backend needs for one stage.
type StageRequest struct {
	TaskID    string                    `json:"task_id"`
	Stage     string                    `json:"stage"`
	CreatorID string                    `json:"creator_id"`
	ContentID string                    `json:"content_id"`
	Params    map[string]any            `json:"params,omitempty"`
	Inputs    map[string]map[string]any `json:"inputs,omitempty"`
}

// Uploader publishes finished content to one account.
type Uploader interface {
	// Upload publishes content and returns the published reference.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// UploadRequest describes one upload.
type UploadRequest struct {
	PublishID   string `json:"publish_id"`
	AccountID   string `json:"account_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentPath string `json:"content_path"`
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	URL string `json:"url"`
}

// UploadDispatcher hands pending publish records to upload workers.
// Dispatch must not wait for uploads to finish.
type UploadDispatcher interface {
	Dispatch(ctx context.Context, publishIDs []string) error
}
