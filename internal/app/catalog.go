package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/example/reelforge/internal/core/acquisition"
	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/ports/primary"
)

// PipelineProfile is the configured shape of one pipeline type.
type PipelineProfile struct {
	Definition  *pipeline.Definition
	FetchConfig acquisition.FetchConfig
}

// Catalog holds the pipeline profiles by type. It is read-only after construction.
type Catalog struct {
	profiles map[string]PipelineProfile
}

// NewCatalog creates a catalog from profiles keyed by pipeline type.
func NewCatalog(profiles map[string]PipelineProfile) *Catalog {
	copied := make(map[string]PipelineProfile, len(profiles))
	for k, v := range profiles {
		copied[k] = v
	}
	return &Catalog{profiles: copied}
}

// Lookup returns the profile of a pipeline type.
func (c *Catalog) Lookup(pipelineType string) (PipelineProfile, error) {
	p, ok := c.profiles[pipelineType]
	if !ok {
		return PipelineProfile{}, fmt.Errorf("%w: unknown pipeline type %q (known: %s)",
			primary.ErrInvalidRequest, pipelineType, strings.Join(c.Types(), ", "))
	}
	return p, nil
}

// Types lists the configured pipeline types in sorted order.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.profiles))
	for t := range c.profiles {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// EffectiveDefinition applies enable_<stage> and strict_mode params to a definition.
func EffectiveDefinition(def *pipeline.Definition, params map[string]any) (*pipeline.Definition, error) {
	enabled := map[string]bool{}
	for _, stage := range def.Stages() {
		raw, ok := params[paramEnablePrefix+stage.Name]
		if !ok {
			continue
		}
		v, err := parseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s%s: %v", primary.ErrInvalidRequest, paramEnablePrefix, stage.Name, err)
		}
		enabled[stage.Name] = v
	}

	var strict *bool
	if raw, ok := params[ParamStrictMode]; ok {
		v, err := parseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", primary.ErrInvalidRequest, ParamStrictMode, err)
		}
		strict = &v
	}

	return def.WithOverrides(enabled, strict), nil
}

// MergeFetchConfig overlays a partial video_fetch_config param on a base config.
func MergeFetchConfig(base acquisition.FetchConfig, params map[string]any) (acquisition.FetchConfig, error) {
	raw, ok := params[ParamVideoFetchConfig]
	if !ok || raw == nil {
		return base, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return base, fmt.Errorf("%w: %s: %v", primary.ErrInvalidRequest, ParamVideoFetchConfig, err)
	}
	merged := base
	merged.CreatorList = append([]string(nil), base.CreatorList...)
	if err := json.Unmarshal(data, &merged); err != nil {
		return base, fmt.Errorf("%w: %s: %v", primary.ErrInvalidRequest, ParamVideoFetchConfig, err)
	}
	if err := merged.Validate(); err != nil {
		return base, fmt.Errorf("%w: %s: %v", primary.ErrInvalidRequest, ParamVideoFetchConfig, err)
	}
	return merged, nil
}

func parseBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case float64:
		return b != 0, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
}
