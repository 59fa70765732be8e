package preflight

import (
	"context"

	"tubescribe/internal/config"
	"tubescribe/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, fromStatus(status))
	}

	switch cfg.Recognition.Backend {
	case config.BackendOpenAI:
		results = append(results, CheckOpenAI(ctx, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL))
	case config.BackendWhisperX:
		results = append(results, CheckModelWeights(cfg))
	}
	return results
}

func fromStatus(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
	if !status.Available {
		result.Detail = status.Detail
		if status.Optional {
			result.Passed = true
			result.Detail = "optional: " + status.Detail
		}
	}
	return result
}
