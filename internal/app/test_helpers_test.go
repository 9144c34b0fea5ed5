package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/ports/secondary"
)

// ============================================================================
// Mock TaskRepository
// ============================================================================

// Ensure mockTaskRepository implements the interface
var _ secondary.TaskRepository = (*mockTaskRepository)(nil)

// mockTaskRepository implements secondary.TaskRepository for testing.
// Records are copied in and out so background runs never share memory with tests.
type mockTaskRepository struct {
	mu        sync.Mutex
	tasks     map[string]*secondary.TaskRecord
	updates   int
	createErr error
	updateErr error
	// afterGet runs once a read has been served; tests use it to land a
	// concurrent write between a read and the next update.
	afterGet func(id string)
}

func newMockTaskRepository() *mockTaskRepository {
	return &mockTaskRepository{tasks: make(map[string]*secondary.TaskRecord)}
}

func (m *mockTaskRepository) Create(ctx context.Context, task *secondary.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	c := *task
	m.tasks[task.ID] = &c
	return nil
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id string) (*secondary.TaskRecord, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("task %s %w", id, secondary.ErrNotFound)
	}
	c := *t
	afterGet := m.afterGet
	m.mu.Unlock()

	if afterGet != nil {
		afterGet(id)
	}
	return &c, nil
}

func (m *mockTaskRepository) Update(ctx context.Context, task *secondary.TaskRecord, from ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	existing, ok := m.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %s %w", task.ID, secondary.ErrNotFound)
	}
	if len(from) > 0 && !containsString(from, existing.Status) {
		return fmt.Errorf("task %s: %w", task.ID, secondary.ErrStaleStatus)
	}
	c := *task
	c.CreatedAt = existing.CreatedAt
	m.tasks[task.ID] = &c
	m.updates++
	return nil
}

func (m *mockTaskRepository) CompareAndSetStatus(ctx context.Context, id string, from []string, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s %w", id, secondary.ErrNotFound)
	}
	for _, f := range from {
		if t.Status == f {
			t.Status = to
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", id, secondary.ErrStaleStatus)
}

func (m *mockTaskRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %s %w", id, secondary.ErrNotFound)
	}
	delete(m.tasks, id)
	return nil
}

func (m *mockTaskRepository) List(ctx context.Context, filters secondary.TaskFilters) ([]*secondary.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.TaskRecord
	for _, t := range m.tasks {
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.PipelineType != "" && t.PipelineType != filters.PipelineType {
			continue
		}
		c := *t
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

// seed stores a task directly, bypassing Create.
func (m *mockTaskRepository) seed(pctx *pipeline.Context) {
	record, err := contextToRecord(pctx)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[record.ID] = record
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (m *mockTaskRepository) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		return t.Status
	}
	return ""
}

// ============================================================================
// Mock PublishRepository
// ============================================================================

// Ensure mockPublishRepository implements the interface
var _ secondary.PublishRepository = (*mockPublishRepository)(nil)

// mockPublishRepository implements secondary.PublishRepository for testing.
type mockPublishRepository struct {
	mu      sync.Mutex
	records map[string]*secondary.PublishRecord
	order   []string
	// afterGet runs once a read has been served.
	afterGet func(id string)
}

func newMockPublishRepository() *mockPublishRepository {
	return &mockPublishRepository{records: make(map[string]*secondary.PublishRecord)}
}

func (m *mockPublishRepository) CreateBatch(ctx context.Context, records []*secondary.PublishRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, dup := m.records[r.ID]; dup {
			return fmt.Errorf("publish record %s already exists", r.ID)
		}
	}
	for _, r := range records {
		c := *r
		m.records[r.ID] = &c
		m.order = append(m.order, r.ID)
	}
	return nil
}

func (m *mockPublishRepository) GetByID(ctx context.Context, id string) (*secondary.PublishRecord, error) {
	m.mu.Lock()
	r, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("publish record %s %w", id, secondary.ErrNotFound)
	}
	c := *r
	afterGet := m.afterGet
	m.mu.Unlock()

	if afterGet != nil {
		afterGet(id)
	}
	return &c, nil
}

func (m *mockPublishRepository) ListByTask(ctx context.Context, taskID string) ([]*secondary.PublishRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.PublishRecord
	for _, id := range m.order {
		r, ok := m.records[id]
		if !ok || r.TaskID != taskID {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockPublishRepository) UpdateStatus(ctx context.Context, update secondary.PublishStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[update.ID]
	if !ok {
		return fmt.Errorf("publish record %s %w", update.ID, secondary.ErrNotFound)
	}
	if r.Status != update.From {
		return fmt.Errorf("publish record %s is no longer %s: %w", update.ID, update.From, secondary.ErrStaleStatus)
	}
	r.Status = update.To
	r.ResultURL = update.ResultURL
	r.ErrorMessage = update.ErrorMessage
	r.PublishedAt = update.PublishedAt
	return nil
}

func (m *mockPublishRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("publish record %s %w", id, secondary.ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *mockPublishRepository) DeleteByTask(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.TaskID == taskID {
			delete(m.records, id)
		}
	}
	return nil
}

// setStatus forces a record status, bypassing the state machine.
func (m *mockPublishRepository) setStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].Status = status
}

// ============================================================================
// Mock external collaborators
// ============================================================================

// mockArtifactStore implements secondary.ArtifactStore for testing.
type mockArtifactStore struct {
	mu     sync.Mutex
	paths  map[string]bool
	calls  int
	err    error
	failOn string
}

func newMockArtifactStore(paths ...string) *mockArtifactStore {
	m := &mockArtifactStore{paths: make(map[string]bool)}
	for _, p := range paths {
		m.paths[p] = true
	}
	return m
}

func (m *mockArtifactStore) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil && (m.failOn == "" || m.failOn == path) {
		return false, m.err
	}
	return m.paths[path], nil
}

func (m *mockArtifactStore) add(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[path] = true
}

func (m *mockArtifactStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockContentDiscovery implements secondary.ContentDiscovery for testing.
type mockContentDiscovery struct {
	mu      sync.Mutex
	items   map[string][]secondary.ContentItem
	errs    map[string]error
	queried []string
}

func newMockContentDiscovery() *mockContentDiscovery {
	return &mockContentDiscovery{
		items: make(map[string][]secondary.ContentItem),
		errs:  make(map[string]error),
	}
}

func (m *mockContentDiscovery) RecentContent(ctx context.Context, creatorID string, daysBack, maxVideos int) ([]secondary.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queried = append(m.queried, creatorID)
	if err := m.errs[creatorID]; err != nil {
		return nil, err
	}
	return m.items[creatorID], nil
}

// mockStageBackend implements secondary.StageBackend for testing.
type mockStageBackend struct {
	mu       sync.Mutex
	outputs  map[string]map[string]any
	errs     map[string]error
	requests []secondary.StageRequest
	// hook runs before a stage returns; tests use it to interleave cancellation.
	hook func(stage string)
}

func newMockStageBackend() *mockStageBackend {
	return &mockStageBackend{
		outputs: map[string]map[string]any{
			pipeline.StageStory:  {"title": "A story", "description": "Told well"},
			pipeline.StageVoice:  {"audio_path": "audio/c/v.mp3"},
			pipeline.StageDraft:  {"draft_path": "drafts/c/v/draft_content.json"},
			pipeline.StageExport: {"video_path": "exports/c/v.mp4"},
		},
		errs: make(map[string]error),
	}
}

func (m *mockStageBackend) Invoke(ctx context.Context, req secondary.StageRequest) (map[string]any, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.hook
	err := m.errs[req.Stage]
	out := m.outputs[req.Stage]
	m.mu.Unlock()

	if hook != nil {
		hook(req.Stage)
	}
	if err != nil {
		return nil, err
	}
	copied := make(map[string]any, len(out))
	for k, v := range out {
		copied[k] = v
	}
	return copied, nil
}

func (m *mockStageBackend) invokedStages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	stages := make([]string, len(m.requests))
	for i, r := range m.requests {
		stages[i] = r.Stage
	}
	return stages
}

func (m *mockStageBackend) setErr(stage string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, stage)
		return
	}
	m.errs[stage] = err
}

// mockUploader implements secondary.Uploader for testing.
type mockUploader struct {
	mu    sync.Mutex
	errs  map[string]error // by account
	calls []string
	hook  func(req secondary.UploadRequest)
}

func newMockUploader() *mockUploader {
	return &mockUploader{errs: make(map[string]error)}
}

func (m *mockUploader) Upload(ctx context.Context, req secondary.UploadRequest) (*secondary.UploadResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.AccountID)
	err := m.errs[req.AccountID]
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	return &secondary.UploadResult{URL: "https://videos.example/" + req.AccountID + "/" + req.PublishID}, nil
}

// mockDispatcher implements secondary.UploadDispatcher by recording ids.
type mockDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, publishIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.ids = append(m.ids, publishIDs...)
	return nil
}

// mockLogWriter implements secondary.LogWriter by recording entries.
type mockLogWriter struct {
	mu      sync.Mutex
	entries []string
}

func (m *mockLogWriter) LogCreate(ctx context.Context, entityType, entityID string) error {
	return m.add(fmt.Sprintf("create %s %s", entityType, entityID))
}

func (m *mockLogWriter) LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error {
	return m.add(fmt.Sprintf("update %s %s %s %s->%s", entityType, entityID, fieldName, oldValue, newValue))
}

func (m *mockLogWriter) LogDelete(ctx context.Context, entityType, entityID string) error {
	return m.add(fmt.Sprintf("delete %s %s", entityType, entityID))
}

func (m *mockLogWriter) add(entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// sequentialIDs returns an id generator producing prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
