// Package queue distributes publish uploads over a Redis-backed asynq queue,
// so uploads can run on worker processes separate from the API server.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/example/reelforge/internal/ports/secondary"
)

// TypePublishUpload is the asynq task type of one publish record upload.
const TypePublishUpload = "publish:upload"

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "uploads"

type uploadPayload struct {
	PublishID string `json:"publish_id"`
}

// NewUploadTask builds the task for one publish record. Retries are driven by
// the publish state machine, not by asynq.
func NewUploadTask(publishID string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(uploadPayload{PublishID: publishID})
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(0)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypePublishUpload, payload, opts...), nil
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Queue   string
	Timeout time.Duration
}

// Dispatcher implements secondary.UploadDispatcher by enqueueing one task per record.
type Dispatcher struct {
	client  *asynq.Client
	queue   string
	timeout time.Duration
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(redisOpt asynq.RedisClientOpt, opts DispatcherOptions) *Dispatcher {
	q := opts.Queue
	if q == "" {
		q = DefaultQueue
	}
	return &Dispatcher{
		client:  asynq.NewClient(redisOpt),
		queue:   q,
		timeout: opts.Timeout,
	}
}

// Dispatch enqueues every record. Records that fail to enqueue stay pending.
func (d *Dispatcher) Dispatch(ctx context.Context, publishIDs []string) error {
	var errs []error
	for _, id := range publishIDs {
		task, err := NewUploadTask(id, d.timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", id, err))
			continue
		}
		if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue)); err != nil {
			errs = append(errs, fmt.Errorf("failed to enqueue publish %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the Redis connection.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// Ensure Dispatcher implements the interface
var _ secondary.UploadDispatcher = (*Dispatcher)(nil)
