package acquisition

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// MatchPolicy decides how artifact checks combine into a processed verdict.
type MatchPolicy string

const (
	// MatchAny treats an item as processed when any artifact exists.
	MatchAny MatchPolicy = "any"
	// MatchAll requires every artifact to exist.
	MatchAll MatchPolicy = "all"
)

// Location is one canonical artifact path template.
// Templates may use {creator} and {content}.
type Location struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Template string `yaml:"template" mapstructure:"template"`
}

// DefaultLocations lists the canonical artifacts in pipeline order.
func DefaultLocations() []Location {
	return []Location{
		{Name: "story", Template: "stories/{creator}/{content}.json"},
		{Name: "audio", Template: "audio/{creator}/{content}.mp3"},
		{Name: "draft", Template: "drafts/{creator}/{content}/draft_content.json"},
		{Name: "export", Template: "exports/{creator}/{content}.mp4"},
	}
}

// Render produces the concrete path for a (creator, content) pair.
func (l Location) Render(creatorID, contentID string) string {
	r := strings.NewReplacer("{creator}", sanitize(creatorID), "{content}", sanitize(contentID))
	return path.Clean(r.Replace(l.Template))
}

// Key is the deterministic identity of a (creator, content) pair.
func Key(creatorID, contentID string) string {
	return fmt.Sprintf("%s/%s", sanitize(creatorID), sanitize(contentID))
}

// Verdict combines per-location existence results under a policy.
func Verdict(policy MatchPolicy, found, checked int) bool {
	if checked == 0 {
		return false
	}
	if policy == MatchAll {
		return found == checked
	}
	return found > 0
}

// sanitize escapes an id into a single path segment. The escaping is
// reversible, so distinct ids never share a path.
func sanitize(id string) string {
	switch id {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(id)
}
