package external

import (
	"context"
	"fmt"
	"net/http"

	"github.com/example/reelforge/internal/ports/secondary"
)

// Uploader implements secondary.Uploader against an upload endpoint.
type Uploader struct {
	client *Client
	url    string
}

// NewUploader creates a new Uploader.
func NewUploader(client *Client, url string) *Uploader {
	return &Uploader{client: client, url: url}
}

// Upload publishes content to one account.
func (u *Uploader) Upload(ctx context.Context, req secondary.UploadRequest) (*secondary.UploadResult, error) {
	if u.url == "" {
		return nil, fmt.Errorf("upload URL is not configured")
	}
	var result secondary.UploadResult
	if err := u.client.doJSON(ctx, http.MethodPost, u.url, req, &result); err != nil {
		return nil, fmt.Errorf("upload to %s: %w", req.AccountID, err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("upload to %s: response carried no url", req.AccountID)
	}
	return &result, nil
}

// Ensure Uploader implements the interface
var _ secondary.Uploader = (*Uploader)(nil)
