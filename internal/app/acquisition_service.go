package app

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/example/reelforge/internal/core/acquisition"
	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/ports/secondary"
)

// ProcessedChecker reports whether a (creator, content) pair was already processed.
type ProcessedChecker interface {
	IsProcessed(ctx context.Context, creatorID, contentID string) (CacheResult, error)
}

// AcquisitionResult is the content item chosen for a task.
type AcquisitionResult struct {
	Content  acquisition.Content
	Fallback bool // chosen from a creator other than the primary
	Skipped  int  // candidates rejected as already processed
}

// Payload renders the result as the video stage output.
func (r *AcquisitionResult) Payload() pipeline.Payload {
	p := pipeline.Payload{
		"content_id": r.Content.ID,
		"creator_id": r.Content.CreatorID,
		"title":      r.Content.Title,
		"url":        r.Content.URL,
		"fallback":   r.Fallback,
	}
	if !r.Content.PublishedAt.IsZero() {
		p["published_at"] = r.Content.PublishedAt.UTC().Format(time.RFC3339)
	}
	return p
}

// AcquisitionService resolves the source content of a task.
type AcquisitionService struct {
	discovery secondary.ContentDiscovery
	checker   ProcessedChecker
	logger    *zap.Logger
	now       func() time.Time
}

// NewAcquisitionService creates a new AcquisitionService.
func NewAcquisitionService(discovery secondary.ContentDiscovery, checker ProcessedChecker, logger *zap.Logger) *AcquisitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcquisitionService{
		discovery: discovery,
		checker:   checker,
		logger:    logger,
		now:       time.Now,
	}
}

// Acquire walks creators in order, primary first, and returns the first
// candidate that has not been processed.
func (s *AcquisitionService) Acquire(ctx context.Context, primaryCreator string, cfg acquisition.FetchConfig) (*AcquisitionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fetch config: %w", err)
	}

	creators := acquisition.CreatorOrder(primaryCreator, cfg.CreatorList)
	if len(creators) == 0 {
		return nil, fmt.Errorf("%w: no creators to search", pipeline.ErrAcquisitionExhausted)
	}

	skipped := 0
	var lastErr error
	for item, err := range s.candidates(ctx, creators, cfg) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			s.logger.Warn("content discovery failed, trying next creator", zap.Error(err))
			continue
		}

		verdict, err := s.checker.IsProcessed(ctx, item.CreatorID, item.ID)
		if err != nil {
			return nil, err
		}
		if verdict.Processed {
			skipped++
			continue
		}

		s.logger.Info("content acquired",
			zap.String("creator_id", item.CreatorID),
			zap.String("content_id", item.ID),
			zap.Int("skipped", skipped))
		return &AcquisitionResult{
			Content:  item,
			Fallback: item.CreatorID != creators[0],
			Skipped:  skipped,
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w (%d creators searched, last error: %v)", pipeline.ErrAcquisitionExhausted, len(creators), lastErr)
	}
	return nil, fmt.Errorf("%w (%d creators searched, %d candidates already processed)", pipeline.ErrAcquisitionExhausted, len(creators), skipped)
}

// candidates yields every (creator, candidate) pair in search order. A failed
// discovery call yields its error once and moves on to the next creator.
func (s *AcquisitionService) candidates(ctx context.Context, creators []string, cfg acquisition.FetchConfig) iter.Seq2[acquisition.Content, error] {
	return func(yield func(acquisition.Content, error) bool) {
		for _, creator := range creators {
			if err := ctx.Err(); err != nil {
				yield(acquisition.Content{}, err)
				return
			}

			items, err := s.discovery.RecentContent(ctx, creator, cfg.DaysBack, cfg.MaxVideos)
			if err != nil {
				if !yield(acquisition.Content{}, fmt.Errorf("discovery for creator %s: %w", creator, err)) {
					return
				}
				continue
			}

			contents := make([]acquisition.Content, 0, len(items))
			for _, item := range items {
				contents = append(contents, acquisition.Content{
					ID:          item.ID,
					CreatorID:   creator,
					Title:       item.Title,
					URL:         item.URL,
					PublishedAt: item.PublishedAt,
				})
			}

			for _, c := range acquisition.Candidates(contents, cfg, s.now()) {
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}
