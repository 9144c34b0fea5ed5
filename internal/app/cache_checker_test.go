package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/reelforge/internal/core/acquisition"
)

func TestCacheChecker_IsProcessed(t *testing.T) {
	tests := []struct {
		name          string
		policy        acquisition.MatchPolicy
		force         bool
		existing      []string
		wantProcessed bool
		wantMatched   int
	}{
		{
			name:          "no artifacts is a miss",
			policy:        acquisition.MatchAny,
			wantProcessed: false,
		},
		{
			name:          "any policy hits on a single artifact",
			policy:        acquisition.MatchAny,
			existing:      []string{"audio/creator-a/vid-1.mp3"},
			wantProcessed: true,
			wantMatched:   1,
		},
		{
			name:          "all policy misses on a partial set",
			policy:        acquisition.MatchAll,
			existing:      []string{"stories/creator-a/vid-1.json", "audio/creator-a/vid-1.mp3"},
			wantProcessed: false,
			wantMatched:   2,
		},
		{
			name:   "all policy hits on the full set",
			policy: acquisition.MatchAll,
			existing: []string{
				"stories/creator-a/vid-1.json",
				"audio/creator-a/vid-1.mp3",
				"drafts/creator-a/vid-1/draft_content.json",
				"exports/creator-a/vid-1.mp4",
			},
			wantProcessed: true,
			wantMatched:   4,
		},
		{
			name:          "force reprocess always misses",
			policy:        acquisition.MatchAny,
			force:         true,
			existing:      []string{"stories/creator-a/vid-1.json"},
			wantProcessed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockArtifactStore(tt.existing...)
			checker, err := NewCacheChecker(store, CacheCheckerConfig{Policy: tt.policy, ForceReprocess: tt.force}, nil)
			if err != nil {
				t.Fatalf("NewCacheChecker failed: %v", err)
			}
			defer checker.Close()

			result, err := checker.IsProcessed(context.Background(), "creator-a", "vid-1")
			if err != nil {
				t.Fatalf("IsProcessed failed: %v", err)
			}
			if result.Processed != tt.wantProcessed {
				t.Errorf("Processed = %v, want %v (matched %v)", result.Processed, tt.wantProcessed, result.Matched)
			}
			if len(result.Matched) != tt.wantMatched {
				t.Errorf("matched %d locations, want %d", len(result.Matched), tt.wantMatched)
			}
			if len(result.Locations) != 4 {
				t.Errorf("expected 4 locations checked, got %d", len(result.Locations))
			}
		})
	}
}

func TestCacheChecker_AnyPolicyShortCircuits(t *testing.T) {
	store := newMockArtifactStore("stories/creator-a/vid-1.json")
	checker, _ := NewCacheChecker(store, CacheCheckerConfig{}, nil)
	defer checker.Close()

	result, err := checker.IsProcessed(context.Background(), "creator-a", "vid-1")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if !result.Processed {
		t.Fatal("expected hit")
	}
	if store.callCount() != 1 {
		t.Errorf("expected 1 existence check, got %d", store.callCount())
	}
}

func TestCacheChecker_MemoizesHitsOnly(t *testing.T) {
	store := newMockArtifactStore()
	checker, _ := NewCacheChecker(store, CacheCheckerConfig{}, nil)
	defer checker.Close()
	ctx := context.Background()

	first, _ := checker.IsProcessed(ctx, "creator-a", "vid-1")
	if first.Processed {
		t.Fatal("expected miss before artifacts exist")
	}
	missCalls := store.callCount()
	if missCalls != 4 {
		t.Fatalf("expected 4 checks on a miss, got %d", missCalls)
	}

	// A miss is never memoized, so a new artifact is seen immediately.
	store.add("drafts/creator-a/vid-1/draft_content.json")
	second, _ := checker.IsProcessed(ctx, "creator-a", "vid-1")
	if !second.Processed {
		t.Fatal("expected hit after artifact appeared")
	}

	afterHit := store.callCount()
	third, _ := checker.IsProcessed(ctx, "creator-a", "vid-1")
	if !third.Processed {
		t.Fatal("expected memoized hit")
	}
	if store.callCount() != afterHit {
		t.Errorf("expected memoized hit to skip storage, got %d extra checks", store.callCount()-afterHit)
	}
}

func TestCacheChecker_SimilarCreatorIDsStayApart(t *testing.T) {
	store := newMockArtifactStore("stories/a%2Fb/vid-1.json")
	checker, err := NewCacheChecker(store, CacheCheckerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewCacheChecker failed: %v", err)
	}
	defer checker.Close()

	hit, err := checker.IsProcessed(context.Background(), "a/b", "vid-1")
	if err != nil || !hit.Processed {
		t.Fatalf("expected a/b processed, got %+v (%v)", hit, err)
	}
	miss, err := checker.IsProcessed(context.Background(), "a_b", "vid-1")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if miss.Processed {
		t.Errorf("expected a_b unprocessed, matched %v", miss.Matched)
	}
}

func TestCacheChecker_StorageErrorIsReturned(t *testing.T) {
	store := newMockArtifactStore()
	store.err = errors.New("disk unavailable")
	checker, _ := NewCacheChecker(store, CacheCheckerConfig{}, nil)
	defer checker.Close()

	_, err := checker.IsProcessed(context.Background(), "creator-a", "vid-1")
	if err == nil {
		t.Fatal("expected storage error")
	}
	if !errors.Is(err, store.err) {
		t.Errorf("expected wrapped storage error, got %v", err)
	}
}

func TestNewCacheChecker_RejectsUnknownPolicy(t *testing.T) {
	_, err := NewCacheChecker(newMockArtifactStore(), CacheCheckerConfig{Policy: "most"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
