package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/reelforge/internal/core/publish"
	"github.com/example/reelforge/internal/ports/secondary"
)

// UploadProcessor drives one publish record through its upload.
type UploadProcessor interface {
	ProcessUpload(ctx context.Context, publishID string) error
}

// UploadPool is an in-process UploadDispatcher. Each dispatched batch runs on
// a bounded errgroup; a failed upload never stops its siblings.
type UploadPool struct {
	ctx       context.Context
	processor UploadProcessor
	limit     int
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewUploadPool creates a pool whose uploads run under ctx.
func NewUploadPool(ctx context.Context, processor UploadProcessor, limit int, logger *zap.Logger) *UploadPool {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadPool{ctx: ctx, processor: processor, limit: limit, logger: logger}
}

// Dispatch starts uploading the records and returns immediately.
func (p *UploadPool) Dispatch(_ context.Context, publishIDs []string) error {
	if len(publishIDs) == 0 {
		return nil
	}
	ids := append([]string(nil), publishIDs...)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		var g errgroup.Group
		g.SetLimit(p.limit)
		for _, id := range ids {
			g.Go(func() error {
				p.process(id)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return nil
}

func (p *UploadPool) process(publishID string) {
	err := p.processor.ProcessUpload(p.ctx, publishID)
	var failure *publish.PublishFailure
	switch {
	case err == nil:
	case errors.As(err, &failure):
		p.logger.Warn("upload failed", zap.String("publish_id", publishID), zap.Error(err))
	default:
		p.logger.Error("upload not processed", zap.String("publish_id", publishID), zap.Error(err))
	}
}

// Wait blocks until every dispatched batch has finished.
func (p *UploadPool) Wait() {
	p.wg.Wait()
}

// Ensure UploadPool implements the interface
var _ secondary.UploadDispatcher = (*UploadPool)(nil)
