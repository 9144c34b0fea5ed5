package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/core/publish"
	"github.com/example/reelforge/internal/ports/secondary"
)

// UploadProcessor drives one publish record through its upload.
type UploadProcessor interface {
	ProcessUpload(ctx context.Context, publishID string) error
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Concurrency int
	Queue       string
}

// Worker consumes upload tasks.
type Worker struct {
	server    *asynq.Server
	processor UploadProcessor
	logger    *zap.Logger
}

// NewWorker creates a new Worker.
func NewWorker(redisOpt asynq.RedisClientOpt, processor UploadProcessor, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{processor: processor, logger: logger}
	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      logger.Sugar(),
		LogLevel:    asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("upload task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
	return w
}

// Mux returns the handler registrations of the worker.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePublishUpload, w.HandleUpload)
	return mux
}

// Run processes tasks until the process receives a termination signal.
func (w *Worker) Run() error {
	return w.server.Run(w.Mux())
}

// Start processes tasks in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.Mux())
}

// Shutdown stops the worker, waiting for active uploads.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// HandleUpload processes one upload task. An upload failure is already stored
// on its record, so it completes the task rather than failing it.
func (w *Worker) HandleUpload(ctx context.Context, task *asynq.Task) error {
	var p uploadPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("invalid upload payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.PublishID == "" {
		return fmt.Errorf("upload payload has no publish_id: %w", asynq.SkipRetry)
	}

	logger := w.logger.With(zap.String("publish_id", p.PublishID))
	err := w.processor.ProcessUpload(ctx, p.PublishID)

	var failure *publish.PublishFailure
	switch {
	case err == nil:
		return nil
	case errors.As(err, &failure):
		logger.Warn("upload failed", zap.Error(err))
		return nil
	case errors.Is(err, publish.ErrInvalidTransition), errors.Is(err, secondary.ErrStaleStatus):
		logger.Info("record is no longer pending, skipping", zap.Error(err))
		return nil
	case errors.Is(err, secondary.ErrNotFound):
		return fmt.Errorf("publish %s: %v: %w", p.PublishID, err, asynq.SkipRetry)
	default:
		return err
	}
}
