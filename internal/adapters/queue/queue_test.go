package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reelforge/internal/adapters/queue"
	"github.com/example/reelforge/internal/core/publish"
	"github.com/example/reelforge/internal/ports/secondary"
)

func startMiniRedis(t *testing.T) asynq.RedisClientOpt {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return asynq.RedisClientOpt{Addr: s.Addr()}
}

type recordingProcessor struct {
	mu   sync.Mutex
	ids  []string
	errs map[string]error
}

func (p *recordingProcessor) ProcessUpload(ctx context.Context, publishID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, publishID)
	return p.errs[publishID]
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func uploadTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	task, err := queue.NewUploadTask(id, 0)
	require.NoError(t, err)
	return task
}

func TestDispatcher_EnqueuesOneTaskPerRecord(t *testing.T) {
	redis := startMiniRedis(t)
	d := queue.NewDispatcher(redis, queue.DispatcherOptions{Queue: "uploads-test"})
	defer d.Close()

	require.NoError(t, d.Dispatch(context.Background(), []string{"p1", "p2"}))

	inspector := asynq.NewInspector(redis)
	defer inspector.Close()
	pending, err := inspector.ListPendingTasks("uploads-test")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	var ids []string
	for _, info := range pending {
		assert.Equal(t, queue.TypePublishUpload, info.Type)
		assert.Equal(t, 0, info.MaxRetry)
		var p map[string]string
		require.NoError(t, json.Unmarshal(info.Payload, &p))
		ids = append(ids, p["publish_id"])
	}
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)
}

func TestDispatcher_SameRecordCanBeRedispatched(t *testing.T) {
	redis := startMiniRedis(t)
	d := queue.NewDispatcher(redis, queue.DispatcherOptions{})
	defer d.Close()

	require.NoError(t, d.Dispatch(context.Background(), []string{"p1"}))
	require.NoError(t, d.Dispatch(context.Background(), []string{"p1"}))

	inspector := asynq.NewInspector(redis)
	defer inspector.Close()
	pending, err := inspector.ListPendingTasks(queue.DefaultQueue)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestWorker_HandleUpload(t *testing.T) {
	proc := &recordingProcessor{errs: map[string]error{
		"failed":    &publish.PublishFailure{PublishID: "failed", AccountID: "acc", Err: errors.New("quota")},
		"cancelled": fmt.Errorf("%w: publish cancelled is cancelled", publish.ErrInvalidTransition),
		"stale":     fmt.Errorf("publish record stale is no longer pending: %w", secondary.ErrStaleStatus),
		"gone":      fmt.Errorf("publish record gone %w", secondary.ErrNotFound),
		"db":        errors.New("database is locked"),
	}}
	w := queue.NewWorker(startMiniRedis(t), proc, queue.WorkerConfig{}, nil)
	ctx := context.Background()

	assert.NoError(t, w.HandleUpload(ctx, uploadTask(t, "ok")))
	assert.NoError(t, w.HandleUpload(ctx, uploadTask(t, "failed")))
	assert.NoError(t, w.HandleUpload(ctx, uploadTask(t, "cancelled")))
	assert.NoError(t, w.HandleUpload(ctx, uploadTask(t, "stale")))

	err := w.HandleUpload(ctx, uploadTask(t, "gone"))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.HandleUpload(ctx, uploadTask(t, "db"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = w.HandleUpload(ctx, asynq.NewTask(queue.TypePublishUpload, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	assert.Equal(t, []string{"ok", "failed", "cancelled", "stale", "gone", "db"}, proc.processed())
}

func TestWorker_ProcessesDispatchedUploads(t *testing.T) {
	redis := startMiniRedis(t)
	proc := &recordingProcessor{}

	w := queue.NewWorker(redis, proc, queue.WorkerConfig{Concurrency: 2}, nil)
	require.NoError(t, w.Start())
	defer w.Shutdown()

	d := queue.NewDispatcher(redis, queue.DispatcherOptions{})
	defer d.Close()
	require.NoError(t, d.Dispatch(context.Background(), []string{"p1", "p2", "p3"}))

	assert.Eventually(t, func() bool {
		return len(proc.processed()) == 3
	}, 5*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, proc.processed())
}
