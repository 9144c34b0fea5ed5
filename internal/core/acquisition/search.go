// Package acquisition contains the pure rules for choosing source content:
// candidate ordering, fallback creator lists and artifact location keys.
package acquisition

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Content is one candidate item returned by discovery.
type Content struct {
	ID          string
	CreatorID   string
	Title       string
	URL         string
	PublishedAt time.Time
}

// FetchConfig bounds a fallback search.
type FetchConfig struct {
	CreatorList []string `json:"creator_list" yaml:"creator_list" mapstructure:"creator_list" validate:"dive,required"`
	DaysBack    int      `json:"days_back" yaml:"days_back" mapstructure:"days_back" validate:"gte=1"`
	MaxVideos   int      `json:"max_videos" yaml:"max_videos" mapstructure:"max_videos" validate:"gte=1"`
}

// DefaultFetchConfig is used when a pipeline does not configure discovery.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{DaysBack: 7, MaxVideos: 5}
}

// CreatorOrder returns the creators to search, primary first. The primary is
// prepended when absent from the list; duplicates and blanks are dropped.
func CreatorOrder(primary string, list []string) []string {
	order := make([]string, 0, len(list)+1)
	seen := make(map[string]struct{}, len(list)+1)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}

	if primary != "" {
		found := false
		for _, id := range list {
			if strings.TrimSpace(id) == primary {
				found = true
				break
			}
		}
		if !found {
			add(primary)
		}
	}
	for _, id := range list {
		add(id)
	}
	return order
}

// Candidates filters items to the discovery window and orders them
// most-recent-first, capped at max. Equal timestamps are ordered by id.
func Candidates(items []Content, cfg FetchConfig, now time.Time) []Content {
	cutoff := now.AddDate(0, 0, -cfg.DaysBack)
	out := make([]Content, 0, len(items))
	for _, item := range items {
		if !item.PublishedAt.IsZero() && item.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})

	if cfg.MaxVideos > 0 && len(out) > cfg.MaxVideos {
		out = out[:cfg.MaxVideos]
	}
	return out
}

// Validate checks a fetch config before a search.
func (c FetchConfig) Validate() error {
	if c.DaysBack < 1 {
		return fmt.Errorf("days_back must be at least 1 (got %d)", c.DaysBack)
	}
	if c.MaxVideos < 1 {
		return fmt.Errorf("max_videos must be at least 1 (got %d)", c.MaxVideos)
	}
	return nil
}
