// Package app assembles tubescribe's collaborators from configuration. The
// server and the one-shot CLI commands share this wiring so both run the
// same pipeline.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tubescribe/internal/api"
	"tubescribe/internal/config"
	"tubescribe/internal/deps"
	"tubescribe/internal/logging"
	"tubescribe/internal/models"
	"tubescribe/internal/pipeline"
	"tubescribe/internal/runstore"
	"tubescribe/internal/segmentation"
	"tubescribe/internal/services/openaiasr"
	"tubescribe/internal/services/whisperx"
	"tubescribe/internal/staging"
	"tubescribe/internal/youtube"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Storage  *staging.Area
	Janitor  *staging.Janitor
	Client   *youtube.Client
	Loader   models.Loader
	Registry *models.Registry
	Store    *runstore.Store
	Pipeline *pipeline.Pipeline
	Service  *api.Service
}

// Build wires every component described by cfg. The run store is optional
// for one-shot commands; when it cannot be opened Build logs a warning and
// continues without run history.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	area, err := staging.NewArea(cfg.Paths.StorageDir, logger)
	if err != nil {
		return nil, err
	}
	janitor := staging.NewJanitor(area, cfg.CleanupDelay(), cfg.Cleanup.Workers, logger)

	client := youtube.NewClient(youtube.Config{
		Binary:          cfg.Retrieval.YtDlpBinary,
		Format:          cfg.Retrieval.Format,
		MetadataTimeout: cfg.MetadataTimeout(),
		DownloadTimeout: cfg.DownloadTimeout(),
		MinFreeBytes:    uint64(cfg.Retrieval.MinFreeMB) * 1024 * 1024,
	}, area, logger)

	loader, err := NewLoader(cfg, logger)
	if err != nil {
		janitor.Close()
		return nil, err
	}
	device := models.DetectDevice(cfg.Recognition.Device, nil)
	if cfg.Recognition.Backend == config.BackendOpenAI {
		device = models.DeviceCPU
	}
	registry := models.NewRegistry(loader, device, cfg.Recognition.MaxResidentModels, logger)

	pipe := pipeline.New(client, registry, janitor, pipeline.Options{
		DefaultModel:    cfg.Recognition.DefaultModel,
		DefaultWindow:   cfg.Segmentation.DefaultWindowSeconds,
		DefaultLanguage: cfg.Recognition.Language,
		Bounds: segmentation.Bounds{
			Min: cfg.Segmentation.MinWindowSeconds,
			Max: cfg.Segmentation.MaxWindowSeconds,
		},
	}, logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Storage:  area,
		Janitor:  janitor,
		Client:   client,
		Loader:   loader,
		Registry: registry,
		Pipeline: pipe,
	}

	store, err := runstore.Open(cfg.RunStorePath())
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "runstore_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
			logging.String(logging.FieldImpact, "runs will not be recorded"),
		)
	} else {
		a.Store = store
		pipe.WithRecorder(store)
	}

	requirements := deps.Requirements(cfg)
	svcDeps := api.Dependencies{
		Retriever:   client,
		Models:      registry,
		Transcriber: pipe,
		Storage:     area,
		CheckDeps:   func() []deps.Status { return deps.CheckBinaries(requirements) },
		Backend:     cfg.Recognition.Backend,
		Logger:      logger,
	}
	if a.Store != nil {
		svcDeps.History = a.Store
	}
	a.Service = api.NewService(svcDeps)

	logger.Debug("components wired",
		logging.String("backend", cfg.Recognition.Backend),
		logging.String("device", string(device)),
		logging.String("storage_root", area.Root()),
		logging.Int("max_resident_models", cfg.Recognition.MaxResidentModels),
	)
	return a, nil
}

// NewLoader returns the model loader for the configured backend.
func NewLoader(cfg *config.Config, logger *slog.Logger) (models.Loader, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Recognition.Backend)) {
	case config.BackendWhisperX, "":
		return whisperx.NewService(whisperx.Config{
			ModelDir:     cfg.Recognition.ModelCacheDir,
			VADMethod:    cfg.Recognition.VADMethod,
			HFToken:      cfg.Recognition.HFToken,
			FFmpegBinary: cfg.FFmpegBinary(),
		}, logger), nil
	case config.BackendOpenAI:
		return openaiasr.NewService(openaiasr.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
		}, logger), nil
	default:
		return nil, fmt.Errorf("recognition.backend: unsupported value %q", cfg.Recognition.Backend)
	}
}

// Close drains pending artifact removals and releases resident models and
// the run store.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.Janitor.Close()
	a.Registry.Close()
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
