package pipeline

import (
	"fmt"
	"time"
)

// Payload is the opaque output of a stage.
type Payload map[string]any

// StageOutput is one stage's payload stored under its output key.
type StageOutput struct {
	Stage   string  `json:"stage"`
	Payload Payload `json:"payload"`
}

// StageOutputs keeps stage outputs in execution order.
type StageOutputs []StageOutput

// Get returns the payload stored under key.
func (o StageOutputs) Get(key string) (Payload, bool) {
	for _, out := range o {
		if out.Stage == key {
			return out.Payload, true
		}
	}
	return nil, false
}

// Has reports whether key has been produced.
func (o StageOutputs) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set appends a payload. Existing keys are never overwritten.
func (o *StageOutputs) Set(key string, payload Payload) error {
	if o.Has(key) {
		return fmt.Errorf("output %s already present", key)
	}
	if payload == nil {
		payload = Payload{}
	}
	*o = append(*o, StageOutput{Stage: key, Payload: payload})
	return nil
}

// StageOutcome is one entry of the stage log.
type StageOutcome struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Context is the mutable state of one task execution.
type Context struct {
	TaskID       string
	PipelineType string
	CreatorID    string
	ContentID    string
	Params       map[string]any
	Outputs      StageOutputs
	StageLog     []StageOutcome
	Status       TaskStatus
	CurrentStage string
	FailedStage  string
	Error        string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// NewContext creates a pending context for a task.
func NewContext(taskID, pipelineType string, params map[string]any, now time.Time) *Context {
	if params == nil {
		params = map[string]any{}
	}
	pctx := &Context{
		TaskID:       taskID,
		PipelineType: pipelineType,
		Params:       params,
		Status:       InitialStatus(),
		CreatedAt:    now,
	}
	if creator, ok := params["creator_id"].(string); ok {
		pctx.CreatorID = creator
	}
	if content, ok := params["content_id"].(string); ok {
		pctx.ContentID = content
	}
	return pctx
}

// HasField reports whether a named field is available to stages, either as a
// stage output or as an input parameter.
func (c *Context) HasField(name string) bool {
	if c.Outputs.Has(name) {
		return true
	}
	_, ok := c.Params[name]
	return ok
}

// Progress returns the latest outcome per stage, keyed by stage name.
func (c *Context) Progress() map[string]StageStatus {
	progress := make(map[string]StageStatus, len(c.StageLog))
	for _, entry := range c.StageLog {
		progress[entry.Stage] = entry.Status
	}
	if c.Status == StatusRunning && c.CurrentStage != "" {
		if _, done := progress[c.CurrentStage]; !done {
			progress[c.CurrentStage] = StageRunning
		}
	}
	return progress
}

// Record appends a stage outcome to the log.
func (c *Context) Record(stage string, status StageStatus, err error, now time.Time) {
	entry := StageOutcome{Stage: stage, Status: status, FinishedAt: now}
	if err != nil {
		entry.Error = err.Error()
	}
	c.StageLog = append(c.StageLog, entry)
}

// Finish applies a terminal transition.
func (c *Context) Finish(status TaskStatus, now time.Time) {
	result := ApplyStatusTransition(status, now)
	c.Status = result.NewStatus
	c.CompletedAt = result.CompletedAt
	c.CurrentStage = ""
}

// Clone returns a deep-enough copy for persisting snapshots.
func (c *Context) Clone() *Context {
	clone := *c
	clone.Params = make(map[string]any, len(c.Params))
	for k, v := range c.Params {
		clone.Params[k] = v
	}
	clone.Outputs = append(StageOutputs(nil), c.Outputs...)
	clone.StageLog = append([]StageOutcome(nil), c.StageLog...)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}
