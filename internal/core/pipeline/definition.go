package pipeline

import "fmt"

// Well-known stage names. The acquisition stage always produces "video".
const (
	StageVideo  = "video"
	StageStory  = "story"
	StageVoice  = "voice"
	StageDraft  = "draft"
	StageExport = "export"
)

// StageDefinition declares one stage of a pipeline.
type StageDefinition struct {
	Name     string
	Enabled  bool
	Requires []string // context fields (stage outputs or params) that must exist
	Produces string   // output key, defaults to Name
}

// OutputKey returns the context key this stage writes.
func (s StageDefinition) OutputKey() string {
	if s.Produces != "" {
		return s.Produces
	}
	return s.Name
}

// Definition is an ordered, read-only list of stages plus the failure policy.
// It is built once per pipeline type and shared across executions.
type Definition struct {
	Type       string
	StrictMode bool
	stages     []StageDefinition
}

// reservedKeys are the task fields that share a namespace with stage outputs
// when a result is rendered flat.
var reservedKeys = map[string]struct{}{
	"task_id":      {},
	"status":       {},
	"stages":       {},
	"stage_log":    {},
	"creator_id":   {},
	"content_id":   {},
	"error":        {},
	"failed_stage": {},
}

// NewDefinition validates and freezes a pipeline definition.
// Rules:
// - at least one stage
// - stage names are unique
// - output keys are unique and not a reserved task field
func NewDefinition(pipelineType string, strict bool, stages []StageDefinition) (*Definition, error) {
	if pipelineType == "" {
		return nil, fmt.Errorf("pipeline: type is required")
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline %s: at least one stage is required", pipelineType)
	}

	names := make(map[string]struct{}, len(stages))
	keys := make(map[string]struct{}, len(stages))
	frozen := make([]StageDefinition, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("pipeline %s stage[%d]: name is required", pipelineType, i)
		}
		if _, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("pipeline %s: duplicate stage %s", pipelineType, s.Name)
		}
		names[s.Name] = struct{}{}

		key := s.OutputKey()
		if _, reserved := reservedKeys[key]; reserved {
			return nil, fmt.Errorf("pipeline %s stage %s: output key %s is reserved", pipelineType, s.Name, key)
		}
		if _, dup := keys[key]; dup {
			return nil, fmt.Errorf("pipeline %s: output key %s produced twice", pipelineType, key)
		}
		keys[key] = struct{}{}

		s.Requires = append([]string(nil), s.Requires...)
		frozen[i] = s
	}

	return &Definition{Type: pipelineType, StrictMode: strict, stages: frozen}, nil
}

// Stages returns a copy of the stage list in execution order.
func (d *Definition) Stages() []StageDefinition {
	out := make([]StageDefinition, len(d.stages))
	copy(out, d.stages)
	return out
}

// Stage looks a stage up by name.
func (d *Definition) Stage(name string) (StageDefinition, bool) {
	for _, s := range d.stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageDefinition{}, false
}

// WithOverrides returns a copy of the definition with per-task enablement and
// strict-mode overrides applied. Keys of enabled are stage names.
func (d *Definition) WithOverrides(enabled map[string]bool, strict *bool) *Definition {
	clone := &Definition{Type: d.Type, StrictMode: d.StrictMode, stages: d.Stages()}
	if strict != nil {
		clone.StrictMode = *strict
	}
	for i := range clone.stages {
		if v, ok := enabled[clone.stages[i].Name]; ok {
			clone.stages[i].Enabled = v
		}
	}
	return clone
}

// DefaultStages returns the standard video-to-draft stage chain.
// Export is declared but disabled unless configured.
func DefaultStages() []StageDefinition {
	return []StageDefinition{
		{Name: StageVideo, Enabled: true},
		{Name: StageStory, Enabled: true, Requires: []string{StageVideo}},
		{Name: StageVoice, Enabled: true, Requires: []string{StageStory}},
		{Name: StageDraft, Enabled: true, Requires: []string{StageStory, StageVoice}},
		{Name: StageExport, Enabled: false, Requires: []string{StageDraft}},
	}
}
