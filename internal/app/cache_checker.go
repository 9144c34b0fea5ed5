package app

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/core/acquisition"
	"github.com/example/reelforge/internal/ports/secondary"
)

// CacheResult is the verdict of one idempotency check.
type CacheResult struct {
	Processed bool
	Matched   []string // locations that exist
	Locations []string // every location checked, in order
}

// CacheCheckerConfig configures the idempotency check.
type CacheCheckerConfig struct {
	Policy         acquisition.MatchPolicy
	ForceReprocess bool
	Locations      []acquisition.Location
}

// CacheChecker decides whether a (creator, content) pair was already processed
// by looking for its artifacts. Artifacts are append-only, so a positive
// verdict is memoized; negative verdicts are always re-checked.
type CacheChecker struct {
	store  secondary.ArtifactStore
	cfg    CacheCheckerConfig
	memo   *ristretto.Cache
	logger *zap.Logger
}

// NewCacheChecker creates a new CacheChecker.
func NewCacheChecker(store secondary.ArtifactStore, cfg CacheCheckerConfig, logger *zap.Logger) (*CacheChecker, error) {
	if cfg.Policy == "" {
		cfg.Policy = acquisition.MatchAny
	}
	if cfg.Policy != acquisition.MatchAny && cfg.Policy != acquisition.MatchAll {
		return nil, fmt.Errorf("unknown match policy %q", cfg.Policy)
	}
	if len(cfg.Locations) == 0 {
		cfg.Locations = acquisition.DefaultLocations()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	memo, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100000,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache memo: %w", err)
	}

	return &CacheChecker{store: store, cfg: cfg, memo: memo, logger: logger}, nil
}

// IsProcessed checks the canonical artifact locations of a pair.
// Storage errors are returned rather than treated as a miss.
func (c *CacheChecker) IsProcessed(ctx context.Context, creatorID, contentID string) (CacheResult, error) {
	result := CacheResult{Locations: make([]string, 0, len(c.cfg.Locations))}
	for _, loc := range c.cfg.Locations {
		result.Locations = append(result.Locations, loc.Render(creatorID, contentID))
	}

	if c.cfg.ForceReprocess {
		return result, nil
	}

	key := acquisition.Key(creatorID, contentID)
	if v, ok := c.memo.Get(key); ok {
		return v.(CacheResult), nil
	}

	checked := 0
	for _, path := range result.Locations {
		exists, err := c.store.Exists(ctx, path)
		if err != nil {
			return CacheResult{}, fmt.Errorf("failed to check artifact %s: %w", path, err)
		}
		checked++
		if exists {
			result.Matched = append(result.Matched, path)
			if c.cfg.Policy == acquisition.MatchAny {
				break
			}
		} else if c.cfg.Policy == acquisition.MatchAll {
			break
		}
	}

	result.Processed = acquisition.Verdict(c.cfg.Policy, len(result.Matched), checked)

	if result.Processed {
		c.memo.Set(key, result, 1)
		c.memo.Wait()
		c.logger.Debug("content already processed",
			zap.String("creator_id", creatorID),
			zap.String("content_id", contentID),
			zap.Strings("matched", result.Matched))
	}

	return result, nil
}

// Close releases the memo.
func (c *CacheChecker) Close() {
	c.memo.Close()
}
