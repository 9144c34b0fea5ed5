package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/core/publish"
	"github.com/example/reelforge/internal/ports/primary"
	"github.com/example/reelforge/internal/ports/secondary"
)

// TaskServiceImpl implements the TaskService interface.
type TaskServiceImpl struct {
	taskRepo    secondary.TaskRepository
	publishRepo secondary.PublishRepository
	catalog     *Catalog
	executor    *PipelineExecutor
	publisher   primary.PublishService
	logWriter   secondary.LogWriter
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string

	wg sync.WaitGroup
}

// NewTaskService creates a new TaskService with injected dependencies.
// publisher and logWriter may be nil.
func NewTaskService(
	taskRepo secondary.TaskRepository,
	publishRepo secondary.PublishRepository,
	catalog *Catalog,
	executor *PipelineExecutor,
	publisher primary.PublishService,
	logWriter secondary.LogWriter,
	logger *zap.Logger,
) *TaskServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskServiceImpl{
		taskRepo:    taskRepo,
		publishRepo: publishRepo,
		catalog:     catalog,
		executor:    executor,
		publisher:   publisher,
		logWriter:   logWriter,
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// CreateTask validates the request, stores a pending task and starts it in
// the background unless the request is deferred.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, req primary.CreateTaskRequest) (*primary.CreateTaskResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", primary.ErrInvalidRequest, err)
	}

	profile, err := s.catalog.Lookup(req.PipelineType)
	if err != nil {
		return nil, err
	}

	params, err := normalizeParams(req.Params)
	if err != nil {
		return nil, err
	}
	if _, err := EffectiveDefinition(profile.Definition, params); err != nil {
		return nil, err
	}
	fetch, err := MergeFetchConfig(profile.FetchConfig, params)
	if err != nil {
		return nil, err
	}
	params[ParamVideoFetchConfig] = map[string]any{
		"creator_list": toAnySlice(fetch.CreatorList),
		"days_back":    float64(fetch.DaysBack),
		"max_videos":   float64(fetch.MaxVideos),
	}

	pctx := pipeline.NewContext(s.newID(), req.PipelineType, params, s.now().UTC())
	record, err := contextToRecord(pctx)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.audit(ctx, func(w secondary.LogWriter) error { return w.LogCreate(ctx, "task", pctx.TaskID) })
	s.logger.Info("task created", zap.String("task_id", pctx.TaskID), zap.String("pipeline_type", req.PipelineType))

	if !req.Deferred {
		exec, claimed, err := s.claim(ctx, pctx.TaskID, false)
		if err != nil {
			return nil, err
		}
		s.runInBackground(ctx, exec, claimed)
	}

	return &primary.CreateTaskResponse{TaskID: pctx.TaskID}, nil
}

// ExecuteTask runs a pending task to completion on the caller's goroutine.
func (s *TaskServiceImpl) ExecuteTask(ctx context.Context, taskID string) (*primary.TaskResult, error) {
	exec, record, err := s.claim(ctx, taskID, false)
	if err != nil {
		return nil, err
	}
	pctx, err := s.execute(ctx, exec, record)
	if pctx == nil {
		return nil, err
	}
	return contextToResult(pctx), err
}

// ResumeTask restarts a failed or cancelled task in the background.
func (s *TaskServiceImpl) ResumeTask(ctx context.Context, taskID string) error {
	exec, record, err := s.claim(ctx, taskID, true)
	if err != nil {
		return err
	}
	s.runInBackground(ctx, exec, record)
	return nil
}

// CancelTask cancels a pending task immediately, or asks a running one to
// stop before its next stage. The stored status reads cancelled as soon as
// CancelTask returns; a stage already in progress still finishes.
func (s *TaskServiceImpl) CancelTask(ctx context.Context, taskID string) error {
	record, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	guard := pipeline.CanCancelTask(pipeline.StatusContext{
		TaskID:   taskID,
		Status:   pipeline.TaskStatus(record.Status),
		InFlight: s.executor.IsRunning(taskID),
	})
	if !guard.Allowed {
		return guard.Error()
	}

	// A run owned by another process notices the stored status before its
	// next stage; a run in this process is also signalled directly.
	err = s.taskRepo.CompareAndSetStatus(ctx, taskID,
		[]string{string(pipeline.StatusPending), string(pipeline.StatusRunning)},
		string(pipeline.StatusCancelled))
	if errors.Is(err, secondary.ErrStaleStatus) {
		return fmt.Errorf("%w: task %s is no longer cancellable", pipeline.ErrInvalidTransition, taskID)
	}
	if err != nil {
		return err
	}
	if s.executor.Cancel(taskID) {
		s.logger.Info("cancellation requested", zap.String("task_id", taskID))
	}

	s.audit(ctx, func(w secondary.LogWriter) error {
		return w.LogUpdate(ctx, "task", taskID, "status", record.Status, string(pipeline.StatusCancelled))
	})
	s.logger.Info("task cancelled", zap.String("task_id", taskID))
	return nil
}

// GetTaskStatus returns the polling view of a task.
func (s *TaskServiceImpl) GetTaskStatus(ctx context.Context, taskID string) (*primary.TaskStatus, error) {
	record, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	pctx, err := recordToContext(record)
	if err != nil {
		return nil, err
	}

	progress := map[string]string{}
	if profile, err := s.catalog.Lookup(record.PipelineType); err == nil {
		if def, err := EffectiveDefinition(profile.Definition, pctx.Params); err == nil {
			for _, stage := range def.Stages() {
				if stage.Enabled {
					progress[stage.Name] = "pending"
				}
			}
		}
	}
	for stage, status := range pctx.Progress() {
		progress[stage] = string(status)
	}

	return &primary.TaskStatus{
		TaskID:       pctx.TaskID,
		PipelineType: pctx.PipelineType,
		Status:       string(pctx.Status),
		CurrentStage: pctx.CurrentStage,
		Progress:     progress,
		FailedStage:  pctx.FailedStage,
		Error:        pctx.Error,
		CreatedAt:    pctx.CreatedAt,
		CompletedAt:  pctx.CompletedAt,
	}, nil
}

// GetTaskResult returns the stage outputs of a task.
func (s *TaskServiceImpl) GetTaskResult(ctx context.Context, taskID string) (*primary.TaskResult, error) {
	record, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	pctx, err := recordToContext(record)
	if err != nil {
		return nil, err
	}
	return contextToResult(pctx), nil
}

// ListTasks lists tasks with their live publish summary.
func (s *TaskServiceImpl) ListTasks(ctx context.Context, filters primary.TaskFilters) (*primary.TaskList, error) {
	records, err := s.taskRepo.List(ctx, secondary.TaskFilters{
		Status:       filters.Status,
		PipelineType: filters.PipelineType,
		Limit:        filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	list := &primary.TaskList{Total: len(records), Tasks: make([]*primary.TaskSummary, 0, len(records))}
	for _, r := range records {
		summary := &primary.TaskSummary{
			TaskID:       r.ID,
			PipelineType: r.PipelineType,
			Status:       r.Status,
			CreatedAt:    r.CreatedAt,
			CompletedAt:  r.CompletedAt,
		}

		pubs, err := s.publishRepo.ListByTask(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list publish records of task %s: %w", r.ID, err)
		}
		if len(pubs) > 0 || r.Status == string(pipeline.StatusCompleted) {
			counts := countRecords(pubs)
			summary.PublishSummary = publish.Summary(counts)
			summary.PublishStatus = toCounts(counts)
		}
		list.Tasks = append(list.Tasks, summary)
	}

	return list, nil
}

// DeleteTask deletes a task that is not running, with its publish records.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, taskID string) error {
	record, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if record.Status == string(pipeline.StatusRunning) || s.executor.IsRunning(taskID) {
		return fmt.Errorf("%w: cannot delete running task %s", pipeline.ErrInvalidTransition, taskID)
	}

	if err := s.publishRepo.DeleteByTask(ctx, taskID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.audit(ctx, func(w secondary.LogWriter) error { return w.LogDelete(ctx, "task", taskID) })
	s.logger.Info("task deleted", zap.String("task_id", taskID))
	return nil
}

// RecoverInterrupted marks tasks left running by a previous process as
// failed, so they can be resumed. It returns the number of tasks recovered.
func (s *TaskServiceImpl) RecoverInterrupted(ctx context.Context) (int, error) {
	records, err := s.taskRepo.List(ctx, secondary.TaskFilters{Status: string(pipeline.StatusRunning)})
	if err != nil {
		return 0, fmt.Errorf("failed to list running tasks: %w", err)
	}

	recovered := 0
	for _, r := range records {
		if s.executor.IsRunning(r.ID) {
			continue
		}
		pctx, err := recordToContext(r)
		if err != nil {
			return recovered, err
		}
		if pctx.CurrentStage != "" {
			pctx.FailedStage = pctx.CurrentStage
		}
		pctx.Error = "interrupted before completion"
		pctx.Finish(pipeline.StatusFailed, s.now().UTC())
		err = s.persist(ctx, pctx, string(pipeline.StatusRunning))
		if errors.Is(err, secondary.ErrStaleStatus) {
			continue
		}
		if err != nil {
			return recovered, err
		}
		recovered++
		s.logger.Warn("recovered interrupted task", zap.String("task_id", r.ID))
	}
	return recovered, nil
}

// Wait blocks until every background run has finished.
func (s *TaskServiceImpl) Wait() {
	s.wg.Wait()
}

// claim reserves the executor slot and moves the stored status to running.
func (s *TaskServiceImpl) claim(ctx context.Context, taskID string, resume bool) (*Execution, *secondary.TaskRecord, error) {
	record, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	inFlight := s.executor.IsRunning(taskID)
	guard := pipeline.CanStartTask(pipeline.StatusContext{
		TaskID:   taskID,
		Status:   pipeline.TaskStatus(record.Status),
		InFlight: inFlight,
	}, resume)
	if !guard.Allowed {
		if inFlight || record.Status == string(pipeline.StatusRunning) {
			return nil, nil, fmt.Errorf("%w: %s", pipeline.ErrTaskAlreadyRunning, taskID)
		}
		return nil, nil, guard.Error()
	}

	exec, err := s.executor.Begin(taskID)
	if err != nil {
		return nil, nil, err
	}

	from := []string{string(pipeline.StatusPending)}
	if resume {
		from = []string{string(pipeline.StatusFailed), string(pipeline.StatusCancelled)}
	}
	if err := s.taskRepo.CompareAndSetStatus(ctx, taskID, from, string(pipeline.StatusRunning)); err != nil {
		exec.Release()
		if errors.Is(err, secondary.ErrStaleStatus) {
			return nil, nil, fmt.Errorf("%w: %s", pipeline.ErrTaskAlreadyRunning, taskID)
		}
		return nil, nil, err
	}

	s.audit(ctx, func(w secondary.LogWriter) error {
		return w.LogUpdate(ctx, "task", taskID, "status", record.Status, string(pipeline.StatusRunning))
	})
	return exec, record, nil
}

func (s *TaskServiceImpl) runInBackground(ctx context.Context, exec *Execution, record *secondary.TaskRecord) {
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.execute(bg, exec, record); err != nil {
			s.logger.Warn("task finished with error", zap.String("task_id", record.ID), zap.Error(err))
		}
	}()
}

// execute runs a claimed task. Every state change is persisted; the final
// status is stored before any error is returned.
func (s *TaskServiceImpl) execute(ctx context.Context, exec *Execution, record *secondary.TaskRecord) (*pipeline.Context, error) {
	pctx, err := recordToContext(record)
	if err != nil {
		exec.Release()
		return nil, err
	}

	def, err := s.definitionFor(pctx)
	if err != nil {
		exec.Release()
		pctx.Error = err.Error()
		pctx.Finish(pipeline.StatusFailed, s.now().UTC())
		if perr := s.persist(ctx, pctx, string(pipeline.StatusRunning)); perr != nil {
			s.logger.Error("failed to persist task failure", zap.String("task_id", pctx.TaskID), zap.Error(perr))
		}
		return pctx, err
	}

	persistCtx := context.WithoutCancel(ctx)
	lastStatus := string(pipeline.StatusRunning)
	superseded := false
	hooks := RunHooks{
		Observe: func(snapshot *pipeline.Context) {
			err := s.persist(persistCtx, snapshot, string(pipeline.StatusRunning))
			if errors.Is(err, secondary.ErrStaleStatus) {
				// Someone else moved the task out of running. Their status
				// stands and the run stops before its next stage.
				superseded = true
				exec.cancelled.Store(true)
				if err = s.keepStoredStatus(persistCtx, snapshot); err == nil {
					lastStatus = string(snapshot.Status)
					return
				}
			}
			if err != nil {
				s.logger.Error("failed to persist task progress", zap.String("task_id", snapshot.TaskID), zap.Error(err))
			}
			if status := string(snapshot.Status); status != lastStatus {
				s.audit(persistCtx, func(w secondary.LogWriter) error {
					return w.LogUpdate(persistCtx, "task", snapshot.TaskID, "status", lastStatus, status)
				})
				lastStatus = status
			}
		},
		CancelRequested: func(ctx context.Context) bool {
			stored, err := s.taskRepo.GetByID(persistCtx, pctx.TaskID)
			return err == nil && stored.Status != string(pipeline.StatusRunning)
		},
	}

	result, runErr := exec.Execute(ctx, def, pctx, hooks)
	if superseded {
		stored, err := s.taskRepo.GetByID(persistCtx, pctx.TaskID)
		if err != nil {
			return result, err
		}
		return recordToContext(stored)
	}
	if result != nil && result.Status == pipeline.StatusCompleted {
		s.autoPublish(persistCtx, result)
	}
	return result, runErr
}

// keepStoredStatus writes the progress of snapshot under the status another
// actor stored, so finished stage outputs survive the takeover.
func (s *TaskServiceImpl) keepStoredStatus(ctx context.Context, snapshot *pipeline.Context) error {
	stored, err := s.taskRepo.GetByID(ctx, snapshot.TaskID)
	if err != nil {
		return err
	}
	snapshot.Status = pipeline.TaskStatus(stored.Status)
	snapshot.CurrentStage = ""
	if stored.ErrorMessage != "" {
		snapshot.Error = stored.ErrorMessage
		snapshot.FailedStage = stored.FailedStage
	}
	switch {
	case stored.CompletedAt != nil:
		snapshot.CompletedAt = stored.CompletedAt
	case snapshot.CompletedAt == nil && snapshot.Status.IsTerminal():
		now := s.now().UTC()
		snapshot.CompletedAt = &now
	}
	return s.persist(ctx, snapshot, stored.Status)
}

func (s *TaskServiceImpl) definitionFor(pctx *pipeline.Context) (*pipeline.Definition, error) {
	profile, err := s.catalog.Lookup(pctx.PipelineType)
	if err != nil {
		return nil, err
	}
	return EffectiveDefinition(profile.Definition, pctx.Params)
}

// autoPublish fans a completed task out to the account_ids param, if any.
func (s *TaskServiceImpl) autoPublish(ctx context.Context, pctx *pipeline.Context) {
	if s.publisher == nil {
		return
	}
	accounts := stringSlice(pctx.Params[ParamAccountIDs])
	if len(accounts) == 0 {
		return
	}
	if _, err := s.publisher.FanOut(ctx, primary.FanOutRequest{TaskID: pctx.TaskID, AccountIDs: accounts}); err != nil {
		s.logger.Error("automatic fan-out failed", zap.String("task_id", pctx.TaskID), zap.Error(err))
	}
}

// persist stores pctx while the stored status is one of from.
func (s *TaskServiceImpl) persist(ctx context.Context, pctx *pipeline.Context, from ...string) error {
	record, err := contextToRecord(pctx)
	if err != nil {
		return err
	}
	return s.taskRepo.Update(ctx, record, from...)
}

func (s *TaskServiceImpl) audit(ctx context.Context, write func(secondary.LogWriter) error) {
	if s.logWriter == nil {
		return
	}
	if err := write(s.logWriter); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err))
	}
}

// Helper functions

func contextToRecord(pctx *pipeline.Context) (*secondary.TaskRecord, error) {
	params, err := json.Marshal(pctx.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	outputs, err := json.Marshal(pctx.Outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outputs: %w", err)
	}
	stageLog, err := json.Marshal(pctx.StageLog)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stage log: %w", err)
	}

	return &secondary.TaskRecord{
		ID:           pctx.TaskID,
		PipelineType: pctx.PipelineType,
		CreatorID:    pctx.CreatorID,
		ContentID:    pctx.ContentID,
		Status:       string(pctx.Status),
		CurrentStage: pctx.CurrentStage,
		FailedStage:  pctx.FailedStage,
		ErrorMessage: pctx.Error,
		ParamsJSON:   string(params),
		OutputsJSON:  string(outputs),
		StageLogJSON: string(stageLog),
		CreatedAt:    pctx.CreatedAt,
		CompletedAt:  pctx.CompletedAt,
	}, nil
}

func recordToContext(r *secondary.TaskRecord) (*pipeline.Context, error) {
	pctx := &pipeline.Context{
		TaskID:       r.ID,
		PipelineType: r.PipelineType,
		CreatorID:    r.CreatorID,
		ContentID:    r.ContentID,
		Params:       map[string]any{},
		Status:       pipeline.TaskStatus(r.Status),
		CurrentStage: r.CurrentStage,
		FailedStage:  r.FailedStage,
		Error:        r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		CompletedAt:  r.CompletedAt,
	}
	if err := decodeJSON(r.ParamsJSON, &pctx.Params); err != nil {
		return nil, fmt.Errorf("task %s has corrupt params: %w", r.ID, err)
	}
	if err := decodeJSON(r.OutputsJSON, &pctx.Outputs); err != nil {
		return nil, fmt.Errorf("task %s has corrupt outputs: %w", r.ID, err)
	}
	if err := decodeJSON(r.StageLogJSON, &pctx.StageLog); err != nil {
		return nil, fmt.Errorf("task %s has corrupt stage log: %w", r.ID, err)
	}
	if pctx.Params == nil {
		pctx.Params = map[string]any{}
	}
	return pctx, nil
}

func contextToResult(pctx *pipeline.Context) *primary.TaskResult {
	result := &primary.TaskResult{
		TaskID:      pctx.TaskID,
		Status:      string(pctx.Status),
		CreatorID:   pctx.CreatorID,
		ContentID:   pctx.ContentID,
		Stages:      make([]string, 0, len(pctx.Outputs)),
		Outputs:     make(map[string]map[string]any, len(pctx.Outputs)),
		StageLog:    make([]primary.StageOutcome, 0, len(pctx.StageLog)),
		FailedStage: pctx.FailedStage,
		Error:       pctx.Error,
	}
	for _, out := range pctx.Outputs {
		result.Stages = append(result.Stages, out.Stage)
		result.Outputs[out.Stage] = out.Payload
	}
	for _, entry := range pctx.StageLog {
		result.StageLog = append(result.StageLog, primary.StageOutcome{
			Stage:  entry.Stage,
			Status: string(entry.Status),
			Error:  entry.Error,
		})
	}
	return result
}

func decodeJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

// normalizeParams gives params the shape they have after a storage round trip.
func normalizeParams(params map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(params) == 0 {
		return out, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: params: %v", primary.ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: params: %v", primary.ErrInvalidRequest, err)
	}
	return out, nil
}

func stringSlice(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vs != "" {
			return []string{vs}
		}
	}
	return nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Ensure TaskServiceImpl implements the interface
var _ primary.TaskService = (*TaskServiceImpl)(nil)
