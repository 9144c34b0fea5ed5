package external

import (
	"context"
	"fmt"
	"net/http"

	"github.com/example/reelforge/internal/ports/secondary"
)

// StageBackend implements secondary.StageBackend by POSTing each stage
// request to the URL configured for that stage.
type StageBackend struct {
	client *Client
	urls   map[string]string
}

// NewStageBackend creates a new StageBackend. urls is keyed by stage name.
func NewStageBackend(client *Client, urls map[string]string) *StageBackend {
	copied := make(map[string]string, len(urls))
	for k, v := range urls {
		copied[k] = v
	}
	return &StageBackend{client: client, urls: copied}
}

// Invoke runs a stage on its backend.
func (b *StageBackend) Invoke(ctx context.Context, req secondary.StageRequest) (map[string]any, error) {
	url, ok := b.urls[req.Stage]
	if !ok || url == "" {
		return nil, fmt.Errorf("no backend configured for stage %s", req.Stage)
	}

	out := map[string]any{}
	if err := b.client.doJSON(ctx, http.MethodPost, url, req, &out); err != nil {
		return nil, fmt.Errorf("stage %s backend: %w", req.Stage, err)
	}
	return out, nil
}

// Ensure StageBackend implements the interface
var _ secondary.StageBackend = (*StageBackend)(nil)
