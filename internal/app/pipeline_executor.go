package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/reelforge/internal/core/pipeline"
)

// StageFunc performs the work of one stage and returns its output payload.
type StageFunc func(ctx context.Context, stage pipeline.StageDefinition, pctx *pipeline.Context) (pipeline.Payload, error)

// RunHooks lets the caller observe and steer an execution.
type RunHooks struct {
	// Observe is called with a snapshot after every state change.
	Observe func(snapshot *pipeline.Context)

	// CancelRequested is polled before each stage and after each stage
	// finishes. It reports cancellations made outside this executor.
	CancelRequested func(ctx context.Context) bool
}

// Execution is a reserved in-flight slot for one task.
type Execution struct {
	taskID    string
	executor  *PipelineExecutor
	cancelled atomic.Bool
	released  atomic.Bool
}

// PipelineExecutor runs pipeline definitions over execution contexts.
// Stages of one task run sequentially; different tasks run concurrently.
type PipelineExecutor struct {
	stages map[string]StageFunc
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	inFlight map[string]*Execution
}

// NewPipelineExecutor creates a new PipelineExecutor with the given stage
// implementations keyed by stage name.
func NewPipelineExecutor(stages map[string]StageFunc, logger *zap.Logger) *PipelineExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := make(map[string]StageFunc, len(stages))
	for name, fn := range stages {
		registry[name] = fn
	}
	return &PipelineExecutor{
		stages:   registry,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]*Execution),
	}
}

// Begin reserves the in-flight slot of a task.
func (e *PipelineExecutor) Begin(taskID string) (*Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inFlight[taskID]; busy {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrTaskAlreadyRunning, taskID)
	}
	exec := &Execution{taskID: taskID, executor: e}
	e.inFlight[taskID] = exec
	return exec, nil
}

// Release frees the slot without running.
func (x *Execution) Release() {
	if x.released.Swap(true) {
		return
	}
	x.executor.mu.Lock()
	defer x.executor.mu.Unlock()
	if x.executor.inFlight[x.taskID] == x {
		delete(x.executor.inFlight, x.taskID)
	}
}

// IsRunning reports whether a task has an in-flight execution.
func (e *PipelineExecutor) IsRunning(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[taskID]
	return ok
}

// Cancel asks an in-flight execution to stop before its next stage.
// It returns false when the task is not in flight.
func (e *PipelineExecutor) Cancel(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.inFlight[taskID]
	if !ok {
		return false
	}
	exec.cancelled.Store(true)
	return true
}

// Run reserves the task and executes it.
func (e *PipelineExecutor) Run(ctx context.Context, def *pipeline.Definition, pctx *pipeline.Context, hooks RunHooks) (*pipeline.Context, error) {
	exec, err := e.Begin(pctx.TaskID)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, def, pctx, hooks)
}

// Execute runs every enabled, unsatisfied stage of def in order and releases
// the slot when done. Stages whose output already exists are skipped, which
// makes a resumed run finish in the same state as an uninterrupted one.
//
// The returned error is a *pipeline.StageFailure when strict mode stopped the
// run. Cancellation is reported through the context status, not an error.
func (x *Execution) Execute(ctx context.Context, def *pipeline.Definition, pctx *pipeline.Context, hooks RunHooks) (*pipeline.Context, error) {
	defer x.Release()
	e := x.executor
	logger := e.logger.With(zap.String("task_id", pctx.TaskID), zap.String("pipeline_type", def.Type))

	stages := def.Stages()
	pruneStageLog(pctx, stages)

	pctx.Status = pipeline.StatusRunning
	pctx.CurrentStage = ""
	pctx.FailedStage = ""
	pctx.Error = ""
	pctx.CompletedAt = nil
	x.observe(hooks, pctx)

	for _, stage := range stages {
		if !stage.Enabled {
			continue
		}
		key := stage.OutputKey()
		if pctx.Outputs.Has(key) {
			logger.Debug("stage already satisfied", zap.String("stage", stage.Name))
			continue
		}

		if x.cancelRequested(ctx, hooks) {
			logger.Info("task cancelled", zap.String("before_stage", stage.Name))
			pctx.Finish(pipeline.StatusCancelled, e.now().UTC())
			x.observe(hooks, pctx)
			return pctx, nil
		}

		pctx.CurrentStage = stage.Name
		x.observe(hooks, pctx)
		// Observing may itself reveal a cancellation.
		if x.cancelled.Load() {
			logger.Info("task cancelled", zap.String("before_stage", stage.Name))
			pctx.Finish(pipeline.StatusCancelled, e.now().UTC())
			x.observe(hooks, pctx)
			return pctx, nil
		}

		payload, err := e.invoke(ctx, stage, pctx)
		if err == nil {
			err = pctx.Outputs.Set(key, payload)
		}
		now := e.now().UTC()

		if err != nil {
			pctx.Record(stage.Name, pipeline.StageFailed, err, now)
			failure := &pipeline.StageFailure{Stage: stage.Name, Err: err}
			logger.Warn("stage failed", zap.String("stage", stage.Name), zap.Bool("strict", def.StrictMode), zap.Error(err))

			if x.cancelRequested(ctx, hooks) {
				pctx.Finish(pipeline.StatusCancelled, now)
				x.observe(hooks, pctx)
				return pctx, nil
			}
			if def.StrictMode {
				pctx.FailedStage = stage.Name
				pctx.Error = failure.Error()
				pctx.Finish(pipeline.StatusFailed, now)
				x.observe(hooks, pctx)
				return pctx, failure
			}
			pctx.CurrentStage = ""
			x.observe(hooks, pctx)
			continue
		}

		pctx.Record(stage.Name, pipeline.StageSucceeded, nil, now)
		if key == pipeline.StageVideo {
			liftIdentity(pctx, payload)
		}
		logger.Info("stage completed", zap.String("stage", stage.Name))

		if x.cancelRequested(ctx, hooks) {
			pctx.Finish(pipeline.StatusCancelled, now)
			x.observe(hooks, pctx)
			return pctx, nil
		}
		pctx.CurrentStage = ""
		x.observe(hooks, pctx)
	}

	pctx.Finish(pipeline.StatusCompleted, e.now().UTC())
	x.observe(hooks, pctx)
	logger.Info("task completed", zap.Int("outputs", len(pctx.Outputs)))
	return pctx, nil
}

func (e *PipelineExecutor) invoke(ctx context.Context, stage pipeline.StageDefinition, pctx *pipeline.Context) (pipeline.Payload, error) {
	for _, field := range stage.Requires {
		if !pctx.HasField(field) {
			return nil, fmt.Errorf("missing required input %q", field)
		}
	}
	fn, ok := e.stages[stage.Name]
	if !ok {
		return nil, fmt.Errorf("no implementation registered for stage %s", stage.Name)
	}
	return fn(ctx, stage, pctx)
}

func (x *Execution) cancelRequested(ctx context.Context, hooks RunHooks) bool {
	if x.cancelled.Load() {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	if hooks.CancelRequested != nil && hooks.CancelRequested(ctx) {
		x.cancelled.Store(true)
		return true
	}
	return false
}

func (x *Execution) observe(hooks RunHooks, pctx *pipeline.Context) {
	if hooks.Observe != nil {
		hooks.Observe(pctx.Clone())
	}
}

// pruneStageLog drops log entries of stages whose output is absent, so that
// re-executed stages are logged once.
func pruneStageLog(pctx *pipeline.Context, stages []pipeline.StageDefinition) {
	keys := make(map[string]string, len(stages))
	for _, s := range stages {
		keys[s.Name] = s.OutputKey()
	}
	kept := pctx.StageLog[:0:0]
	for _, entry := range pctx.StageLog {
		if key, ok := keys[entry.Stage]; ok && pctx.Outputs.Has(key) {
			kept = append(kept, entry)
		}
	}
	pctx.StageLog = kept
}

// liftIdentity copies the acquired creator and content ids onto the context.
func liftIdentity(pctx *pipeline.Context, payload pipeline.Payload) {
	if id, ok := payload["content_id"].(string); ok && id != "" {
		pctx.ContentID = id
	}
	if id, ok := payload["creator_id"].(string); ok && id != "" {
		pctx.CreatorID = id
	}
}
