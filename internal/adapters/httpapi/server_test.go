package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reelforge/internal/adapters/httpapi"
	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/core/publish"
	"github.com/example/reelforge/internal/ctxutil"
	"github.com/example/reelforge/internal/ports/primary"
	"github.com/example/reelforge/internal/ports/secondary"
)

// ============================================================================
// Mock services
// ============================================================================

type mockTaskService struct {
	created   []primary.CreateTaskRequest
	createErr error
	filters   primary.TaskFilters
	actor     string
	cancelErr error
	resumeErr error
	deleteErr error
	result    *primary.TaskResult
}

func (m *mockTaskService) CreateTask(ctx context.Context, req primary.CreateTaskRequest) (*primary.CreateTaskResponse, error) {
	m.actor = ctxutil.ActorFromContext(ctx)
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, req)
	return &primary.CreateTaskResponse{TaskID: "task-1"}, nil
}

func (m *mockTaskService) ExecuteTask(ctx context.Context, taskID string) (*primary.TaskResult, error) {
	return nil, fmt.Errorf("not used")
}

func (m *mockTaskService) ResumeTask(ctx context.Context, taskID string) error {
	return m.resumeErr
}

func (m *mockTaskService) CancelTask(ctx context.Context, taskID string) error {
	return m.cancelErr
}

func (m *mockTaskService) GetTaskStatus(ctx context.Context, taskID string) (*primary.TaskStatus, error) {
	if taskID != "task-1" {
		return nil, fmt.Errorf("task %s %w", taskID, secondary.ErrNotFound)
	}
	return &primary.TaskStatus{
		TaskID:       taskID,
		Status:       "running",
		CurrentStage: "voice",
		Progress:     map[string]string{"video": "success", "story": "success", "voice": "running", "draft": "pending"},
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockTaskService) GetTaskResult(ctx context.Context, taskID string) (*primary.TaskResult, error) {
	if m.result == nil {
		return nil, fmt.Errorf("task %s %w", taskID, secondary.ErrNotFound)
	}
	return m.result, nil
}

func (m *mockTaskService) ListTasks(ctx context.Context, filters primary.TaskFilters) (*primary.TaskList, error) {
	m.filters = filters
	return &primary.TaskList{Total: 1, Tasks: []*primary.TaskSummary{{
		TaskID:         "task-1",
		Status:         "completed",
		PublishSummary: "partially published (1/2)",
		PublishStatus:  &primary.PublishStatusCounts{Total: 2, Success: 1, Pending: 1},
	}}}, nil
}

func (m *mockTaskService) DeleteTask(ctx context.Context, taskID string) error {
	return m.deleteErr
}

type mockPublishService struct {
	fanOut   primary.FanOutRequest
	retryErr error
}

func (m *mockPublishService) FanOut(ctx context.Context, req primary.FanOutRequest) ([]*primary.PublishRecord, error) {
	m.fanOut = req
	if len(req.AccountIDs) == 0 {
		return nil, fmt.Errorf("%w: account_ids is required", primary.ErrInvalidRequest)
	}
	out := make([]*primary.PublishRecord, len(req.AccountIDs))
	for i, acc := range req.AccountIDs {
		out[i] = &primary.PublishRecord{PublishID: fmt.Sprintf("pub-%d", i+1), TaskID: req.TaskID, AccountID: acc, Status: "pending"}
	}
	return out, nil
}

func (m *mockPublishService) GetPublishStatus(ctx context.Context, taskID string) (*primary.PublishStatus, error) {
	return &primary.PublishStatus{
		TaskID:  taskID,
		Counts:  primary.PublishStatusCounts{Total: 3, Success: 1, Failed: 1, Pending: 1},
		Summary: "partially published (1/3)",
		PublishedAccounts: []*primary.PublishRecord{
			{PublishID: "pub-1", AccountID: "acc-1", Status: "success", ResultURL: "https://videos.example/1"},
			{PublishID: "pub-2", AccountID: "acc-2", Status: "failed", ErrorMessage: "quota"},
			{PublishID: "pub-3", AccountID: "acc-3", Status: "pending"},
		},
	}, nil
}

func (m *mockPublishService) RetryPublish(ctx context.Context, publishID string) (*primary.PublishActionResponse, error) {
	if m.retryErr != nil {
		return nil, m.retryErr
	}
	return &primary.PublishActionResponse{Message: "publish to acc-2 queued for retry", PublishID: publishID}, nil
}

func (m *mockPublishService) CancelPublish(ctx context.Context, publishID string) (*primary.PublishActionResponse, error) {
	return &primary.PublishActionResponse{Message: "publish to acc-3 cancelled", PublishID: publishID}, nil
}

func (m *mockPublishService) DeletePublish(ctx context.Context, publishID string) (*primary.PublishActionResponse, error) {
	return nil, fmt.Errorf("publish record %s %w", publishID, secondary.ErrNotFound)
}

func (m *mockPublishService) ProcessUpload(ctx context.Context, publishID string) error {
	return nil
}

type mockLogService struct{}

func (mockLogService) ListEntityLog(ctx context.Context, entityType, entityID string) ([]*primary.LogEntry, error) {
	return []*primary.LogEntry{{EntityType: entityType, EntityID: entityID, Action: "create"}}, nil
}

// ============================================================================
// Helpers
// ============================================================================

type fixture struct {
	tasks   *mockTaskService
	publish *mockPublishService
	handler http.Handler
}

func newFixture() *fixture {
	f := &fixture{tasks: &mockTaskService{}, publish: &mockPublishService{}}
	srv := httpapi.NewServer(f.tasks, f.publish, mockLogService{}, httpapi.Config{Mode: gin.TestMode}, nil)
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "tester")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// ============================================================================
// Tests
// ============================================================================

func TestCreateTask(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"pipeline_type": "shorts",
		"params":        map[string]any{"creator_id": "c1", "enable_export": true},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "task-1", body["task_id"])
	require.Len(t, f.tasks.created, 1)
	assert.Equal(t, "shorts", f.tasks.created[0].PipelineType)
	assert.Equal(t, true, f.tasks.created[0].Params["enable_export"])
	assert.Equal(t, "tester", f.tasks.actor)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateTask_BadJSON(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: fmt.Errorf("%w: unknown pipeline type", primary.ErrInvalidRequest), want: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("task x %w", secondary.ErrNotFound), want: http.StatusNotFound},
		{name: "task transition", err: fmt.Errorf("%w: cannot", pipeline.ErrInvalidTransition), want: http.StatusConflict},
		{name: "publish transition", err: fmt.Errorf("%w: cannot", publish.ErrInvalidTransition), want: http.StatusConflict},
		{name: "already running", err: fmt.Errorf("%w: task-1", pipeline.ErrTaskAlreadyRunning), want: http.StatusConflict},
		{name: "stale status", err: fmt.Errorf("task-1: %w", secondary.ErrStaleStatus), want: http.StatusConflict},
		{name: "internal", err: fmt.Errorf("database is locked"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.tasks.createErr = tt.err

			rec, body := f.do(t, http.MethodPost, "/api/tasks", map[string]any{"pipeline_type": "shorts"})

			assert.Equal(t, tt.want, rec.Code)
			errBody, ok := body["error"].(map[string]any)
			require.True(t, ok, "expected error body, got %v", body)
			assert.Equal(t, float64(tt.want), errBody["status"])
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", errBody["detail"])
			}
		})
	}
}

func TestListTasks(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/api/tasks?status=completed&pipeline_type=shorts&limit=5", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, primary.TaskFilters{Status: "completed", PipelineType: "shorts", Limit: 5}, f.tasks.filters)
	assert.Equal(t, float64(1), body["total"])
	tasks := body["tasks"].([]any)
	first := tasks[0].(map[string]any)
	assert.Equal(t, "partially published (1/2)", first["publish_summary"])
	assert.Equal(t, float64(2), first["publish_status"].(map[string]any)["total"])
}

func TestListTasks_BadLimit(t *testing.T) {
	f := newFixture()
	rec, _ := f.do(t, http.MethodGet, "/api/tasks?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTaskStatus(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/api/tasks/task-1/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "voice", body["current_stage"])
	assert.Equal(t, "pending", body["progress"].(map[string]any)["draft"])
	assert.Nil(t, body["completed_at"])

	rec, _ = f.do(t, http.MethodGet, "/api/tasks/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTaskResult_FlattensOutputs(t *testing.T) {
	f := newFixture()
	f.tasks.result = &primary.TaskResult{
		TaskID:      "task-1",
		Status:      "failed",
		Stages:      []string{"video", "story"},
		Outputs:     map[string]map[string]any{"video": {"content_id": "v1"}, "story": {"title": "A story"}},
		FailedStage: "voice",
		Error:       `stage voice failed: quota`,
	}

	rec, body := f.do(t, http.MethodGet, "/api/tasks/task-1/result", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A story", body["story"].(map[string]any)["title"])
	assert.Equal(t, "v1", body["video"].(map[string]any)["content_id"])
	assert.Equal(t, "voice", body["failed_stage"])
	assert.Equal(t, []any{"video", "story"}, body["stages"])
}

func TestTaskActions(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodPost, "/api/tasks/task-1/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "task-1", body["task_id"])

	rec, _ = f.do(t, http.MethodPost, "/api/tasks/task-1/resume", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	f.tasks.deleteErr = fmt.Errorf("%w: cannot delete running task", pipeline.ErrInvalidTransition)
	rec, _ = f.do(t, http.MethodDelete, "/api/tasks/task-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	f.tasks.cancelErr = fmt.Errorf("%w: completed", pipeline.ErrInvalidTransition)
	rec, _ = f.do(t, http.MethodPost, "/api/tasks/task-1/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFanOut(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodPost, "/api/tasks/task-1/publish", map[string]any{"account_ids": []string{"acc-1", "acc-2"}})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "task-1", f.publish.fanOut.TaskID)
	records := body["published_accounts"].([]any)
	assert.Len(t, records, 2)
	assert.Equal(t, "acc-2", records[1].(map[string]any)["account_id"])

	rec, _ = f.do(t, http.MethodPost, "/api/tasks/task-1/publish", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPublishStatus(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/api/tasks/task-1/publish", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	counts := body["publish_status"].(map[string]any)
	assert.Equal(t, float64(3), counts["total"])
	assert.Equal(t, float64(0), counts["uploading"])
	accounts := body["published_accounts"].([]any)
	require.Len(t, accounts, 3)
	assert.Equal(t, "https://videos.example/1", accounts[0].(map[string]any)["youtube_video_url"])
	assert.Equal(t, "quota", accounts[1].(map[string]any)["error_message"])
}

func TestPublishActions(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodPost, "/api/publish/pub-2/retry", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pub-2", body["publish_id"])

	f.publish.retryErr = fmt.Errorf("%w: already succeeded", publish.ErrInvalidTransition)
	rec, _ = f.do(t, http.MethodPost, "/api/publish/pub-1/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/api/publish/pub-3/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "publish to acc-3 cancelled", body["message"])

	rec, _ = f.do(t, http.MethodDelete, "/api/publish/pub-9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntityLog(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/api/tasks/task-1/log", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "task", entries[0].(map[string]any)["entity_type"])
}

func TestHealthAndNoRoute(t *testing.T) {
	f := newFixture()

	rec, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	build, ok := body["build"].(map[string]any)
	require.True(t, ok, "expected build metadata, got %v", body)
	assert.NotEmpty(t, build["version"])
	assert.NotEmpty(t, build["go_version"])

	rec, _ = f.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
