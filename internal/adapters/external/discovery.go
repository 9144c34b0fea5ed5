package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/reelforge/internal/ports/secondary"
)

// ContentDiscovery implements secondary.ContentDiscovery against a listing endpoint:
// GET <base>?creator_id=..&days_back=..&max_videos=.. -> {"items": [...]}.
type ContentDiscovery struct {
	client  *Client
	baseURL string
}

// NewContentDiscovery creates a new ContentDiscovery.
func NewContentDiscovery(client *Client, baseURL string) *ContentDiscovery {
	return &ContentDiscovery{client: client, baseURL: baseURL}
}

type discoveryResponse struct {
	Items []secondary.ContentItem `json:"items"`
}

// RecentContent lists recent content of a creator.
func (d *ContentDiscovery) RecentContent(ctx context.Context, creatorID string, daysBack, maxVideos int) ([]secondary.ContentItem, error) {
	if d.baseURL == "" {
		return nil, fmt.Errorf("content discovery URL is not configured")
	}
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid discovery URL: %w", err)
	}
	q := u.Query()
	q.Set("creator_id", creatorID)
	q.Set("days_back", strconv.Itoa(daysBack))
	q.Set("max_videos", strconv.Itoa(maxVideos))
	u.RawQuery = q.Encode()

	var resp discoveryResponse
	if err := d.client.doJSON(ctx, http.MethodGet, u.String(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list content of %s: %w", creatorID, err)
	}
	if len(resp.Items) > maxVideos {
		resp.Items = resp.Items[:maxVideos]
	}
	return resp.Items, nil
}

// Ensure ContentDiscovery implements the interface
var _ secondary.ContentDiscovery = (*ContentDiscovery)(nil)
