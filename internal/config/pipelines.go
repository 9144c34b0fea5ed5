package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/reelforge/internal/core/acquisition"
	"github.com/example/reelforge/internal/core/pipeline"
)

//go:embed pipelines.default.yaml
var defaultPipelines []byte

const enablePrefix = "enable_"

// PipelineFile is the decoded pipelines document.
type PipelineFile struct {
	Pipelines map[string]PipelineSpec `yaml:"pipelines" validate:"required,min=1,dive"`
	Schedules []ScheduleSpec          `yaml:"schedules" validate:"dive"`
}

// PipelineSpec configures one pipeline type. Stages default to the standard
// video-to-draft chain; enable_<stage> keys toggle individual stages.
type PipelineSpec struct {
	StrictMode       *bool                    `yaml:"strict_mode"`
	Stages           []StageSpec              `yaml:"stages" validate:"dive"`
	VideoFetchConfig *acquisition.FetchConfig `yaml:"video_fetch_config" validate:"-"`
	Toggles          map[string]bool          `yaml:",inline"`
}

// StageSpec declares one stage. Enabled defaults to true.
type StageSpec struct {
	Name     string   `yaml:"name" validate:"required"`
	Enabled  *bool    `yaml:"enabled"`
	Requires []string `yaml:"requires"`
	Produces string   `yaml:"produces"`
}

// ScheduleSpec creates a task on a cron expression.
type ScheduleSpec struct {
	Name         string         `yaml:"name" validate:"required"`
	Cron         string         `yaml:"cron" validate:"required"`
	PipelineType string         `yaml:"pipeline_type" validate:"required"`
	Params       map[string]any `yaml:"params"`
}

// Pipeline is a built pipeline profile.
type Pipeline struct {
	Definition  *pipeline.Definition
	FetchConfig acquisition.FetchConfig
}

// LoadPipelines reads a pipelines file, or the built-in profiles when path is empty.
func LoadPipelines(path string) (*PipelineFile, error) {
	if path == "" {
		return ParsePipelines(defaultPipelines)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipelines file: %w", err)
	}
	return ParsePipelines(data)
}

// ParsePipelines decodes and validates a pipelines document.
func ParsePipelines(data []byte) (*PipelineFile, error) {
	var f PipelineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pipelines: %w", err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid pipelines: %w", err)
	}
	for _, s := range f.Schedules {
		if _, ok := f.Pipelines[s.PipelineType]; !ok {
			return nil, fmt.Errorf("schedule %s: unknown pipeline type %q", s.Name, s.PipelineType)
		}
	}
	return &f, nil
}

// Build turns every pipeline spec into an immutable definition.
func (f *PipelineFile) Build() (map[string]Pipeline, error) {
	out := make(map[string]Pipeline, len(f.Pipelines))
	for _, name := range f.Types() {
		p, err := f.Pipelines[name].build(name)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// Types lists the pipeline types in sorted order.
func (f *PipelineFile) Types() []string {
	types := make([]string, 0, len(f.Pipelines))
	for t := range f.Pipelines {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (p PipelineSpec) build(pipelineType string) (Pipeline, error) {
	stages := pipeline.DefaultStages()
	if len(p.Stages) > 0 {
		stages = make([]pipeline.StageDefinition, 0, len(p.Stages))
		for _, s := range p.Stages {
			enabled := true
			if s.Enabled != nil {
				enabled = *s.Enabled
			}
			stages = append(stages, pipeline.StageDefinition{
				Name:     s.Name,
				Enabled:  enabled,
				Requires: s.Requires,
				Produces: s.Produces,
			})
		}
	}

	strict := true
	if p.StrictMode != nil {
		strict = *p.StrictMode
	}

	def, err := pipeline.NewDefinition(pipelineType, strict, stages)
	if err != nil {
		return Pipeline{}, err
	}

	toggles := make(map[string]bool, len(p.Toggles))
	for key, v := range p.Toggles {
		stage, ok := strings.CutPrefix(key, enablePrefix)
		if !ok {
			return Pipeline{}, fmt.Errorf("pipeline %s: unknown option %q", pipelineType, key)
		}
		if _, ok := def.Stage(stage); !ok {
			return Pipeline{}, fmt.Errorf("pipeline %s: %s names unknown stage %q", pipelineType, key, stage)
		}
		toggles[stage] = v
	}
	if len(toggles) > 0 {
		def = def.WithOverrides(toggles, nil)
	}

	fetch := acquisition.DefaultFetchConfig()
	if p.VideoFetchConfig != nil {
		fetch.CreatorList = p.VideoFetchConfig.CreatorList
		if p.VideoFetchConfig.DaysBack != 0 {
			fetch.DaysBack = p.VideoFetchConfig.DaysBack
		}
		if p.VideoFetchConfig.MaxVideos != 0 {
			fetch.MaxVideos = p.VideoFetchConfig.MaxVideos
		}
	}
	if err := fetch.Validate(); err != nil {
		return Pipeline{}, fmt.Errorf("pipeline %s: video_fetch_config: %w", pipelineType, err)
	}

	return Pipeline{Definition: def, FetchConfig: fetch}, nil
}
