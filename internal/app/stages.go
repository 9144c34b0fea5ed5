package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/reelforge/internal/core/acquisition"
	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/ports/secondary"
)

// Params keys understood by the built-in stages.
const (
	ParamCreatorID        = "creator_id"
	ParamContentID        = "content_id"
	ParamTitle            = "title"
	ParamVideoFetchConfig = "video_fetch_config"
	ParamAccountIDs       = "account_ids"
	ParamStrictMode       = "strict_mode"
	paramEnablePrefix     = "enable_"
)

// Acquirer resolves the source content of a task.
type Acquirer interface {
	Acquire(ctx context.Context, primaryCreator string, cfg acquisition.FetchConfig) (*AcquisitionResult, error)
}

// NewStageRegistry returns the stage implementations: acquisition for the
// video stage and the external backend for every generation stage.
func NewStageRegistry(acquirer Acquirer, backend secondary.StageBackend) map[string]StageFunc {
	generate := backendStage(backend)
	return map[string]StageFunc{
		pipeline.StageVideo:  videoStage(acquirer),
		pipeline.StageStory:  generate,
		pipeline.StageVoice:  generate,
		pipeline.StageDraft:  generate,
		pipeline.StageExport: generate,
	}
}

// videoStage picks the content item. A content_id param skips the search.
func videoStage(acquirer Acquirer) StageFunc {
	return func(ctx context.Context, stage pipeline.StageDefinition, pctx *pipeline.Context) (pipeline.Payload, error) {
		if contentID, _ := pctx.Params[ParamContentID].(string); contentID != "" {
			title, _ := pctx.Params[ParamTitle].(string)
			return pipeline.Payload{
				"content_id": contentID,
				"creator_id": pctx.CreatorID,
				"title":      title,
				"fallback":   false,
			}, nil
		}

		cfg, err := FetchConfigFromParams(pctx.Params)
		if err != nil {
			return nil, err
		}
		result, err := acquirer.Acquire(ctx, pctx.CreatorID, cfg)
		if err != nil {
			return nil, err
		}
		return result.Payload(), nil
	}
}

// backendStage forwards a stage to the external backend with the outputs it requires.
func backendStage(backend secondary.StageBackend) StageFunc {
	return func(ctx context.Context, stage pipeline.StageDefinition, pctx *pipeline.Context) (pipeline.Payload, error) {
		inputs := make(map[string]map[string]any, len(stage.Requires))
		for _, field := range stage.Requires {
			if payload, ok := pctx.Outputs.Get(field); ok {
				inputs[field] = payload
			}
		}

		out, err := backend.Invoke(ctx, secondary.StageRequest{
			TaskID:    pctx.TaskID,
			Stage:     stage.Name,
			CreatorID: pctx.CreatorID,
			ContentID: pctx.ContentID,
			Params:    pctx.Params,
			Inputs:    inputs,
		})
		if err != nil {
			return nil, err
		}
		return pipeline.Payload(out), nil
	}
}

// FetchConfigFromParams decodes the video_fetch_config param over the defaults.
func FetchConfigFromParams(params map[string]any) (acquisition.FetchConfig, error) {
	cfg := acquisition.DefaultFetchConfig()
	raw, ok := params[ParamVideoFetchConfig]
	if !ok || raw == nil {
		return cfg, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", ParamVideoFetchConfig, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", ParamVideoFetchConfig, err)
	}
	return cfg, nil
}
