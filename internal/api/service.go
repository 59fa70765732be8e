package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tubescribe/internal/deps"
	"tubescribe/internal/logging"
	"tubescribe/internal/models"
	"tubescribe/internal/pipeline"
	"tubescribe/internal/runstore"
	"tubescribe/internal/services"
)

// ModelCatalog reports the registry state.
type ModelCatalog interface {
	Describe() models.CatalogView
	Device() models.Device
}

// Transcriber runs the pipeline.
type Transcriber interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, pipeline.Run, error)
	Options() pipeline.Options
}

// Storage is the ephemeral audio area.
type Storage interface {
	Contains(path string) bool
	Remove(path string) (bool, error)
	RemoveAll() (int, error)
	FreeBytes() (uint64, error)
}

// RunHistory reads recorded runs.
type RunHistory interface {
	List(ctx context.Context, opts runstore.ListOptions) ([]runstore.Record, error)
	Get(ctx context.Context, id string) (*runstore.Record, error)
}

// Dependencies are the collaborators a Service fronts. History and
// CheckDeps are optional.
type Dependencies struct {
	Retriever   pipeline.Retriever
	Models      ModelCatalog
	Transcriber Transcriber
	Storage     Storage
	History     RunHistory
	CheckDeps   func() []deps.Status
	Backend     string
	Logger      *slog.Logger
}

// Service implements the boundary operations.
type Service struct {
	d      Dependencies
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(d Dependencies) *Service {
	return &Service{
		d:      d,
		logger: logging.NewComponentLogger(d.Logger, "api"),
		now:    time.Now,
	}
}

// Failure renders err as a failed Envelope.
func Failure(err error) Envelope {
	if err == nil {
		return Envelope{Success: true}
	}
	return Envelope{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: string(services.KindOf(err)),
	}
}

func ok() Envelope {
	return Envelope{Success: true}
}

func requireURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "api", "request", "url is required", nil)
	}
	return trimmed, nil
}

// VideoInfo resolves metadata for url.
func (s *Service) VideoInfo(ctx context.Context, url string) (VideoInfoResponse, error) {
	url, err := requireURL(url)
	if err != nil {
		return VideoInfoResponse{Envelope: Failure(err)}, err
	}
	ref, err := s.d.Retriever.Validate(url)
	if err != nil {
		return VideoInfoResponse{Envelope: Failure(err)}, err
	}
	info, err := s.d.Retriever.FetchMetadata(ctx, ref.CanonicalURL)
	if err != nil {
		return VideoInfoResponse{Envelope: Failure(err)}, err
	}
	return VideoInfoResponse{Envelope: ok(), VideoInfo: &info}, nil
}

// DownloadAudio materializes the audio for url and leaves it in storage
// until it is cleaned up explicitly or by the stale sweep.
func (s *Service) DownloadAudio(ctx context.Context, url string) (DownloadResponse, error) {
	url, err := requireURL(url)
	if err != nil {
		return DownloadResponse{Envelope: Failure(err)}, err
	}
	ref, err := s.d.Retriever.Validate(url)
	if err != nil {
		return DownloadResponse{Envelope: Failure(err)}, err
	}
	artifact, err := s.d.Retriever.Download(ctx, ref.CanonicalURL)
	if err != nil {
		return DownloadResponse{Envelope: Failure(err)}, err
	}
	s.logger.Info("audio downloaded",
		logging.String("video_id", artifact.VideoID),
		logging.String("audio_path", artifact.Path),
		logging.Int64("file_size", artifact.Size),
	)
	return DownloadResponse{
		Envelope:  ok(),
		VideoID:   artifact.VideoID,
		AudioPath: artifact.Path,
		FileSize:  artifact.Size,
	}, nil
}

// Models describes the catalog and registry state.
func (s *Service) Models() ModelsResponse {
	view := s.d.Models.Describe()
	resp := ModelsResponse{
		Envelope:     ok(),
		Models:       view.Models,
		LoadedModels: view.Loaded,
		Device:       string(view.Device),
	}
	if resp.LoadedModels == nil {
		resp.LoadedModels = []string{}
	}
	if view.Current != "" {
		current := view.Current
		resp.CurrentModel = &current
	}
	return resp
}

// Transcribe runs the full pipeline for req.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (TranscribeResponse, error) {
	start := s.now()
	fail := func(err error) (TranscribeResponse, error) {
		return TranscribeResponse{Envelope: Failure(err), ProcessingTime: s.now().Sub(start).Seconds()}, err
	}

	url, err := requireURL(req.URL)
	if err != nil {
		return fail(err)
	}
	if req.SegmentDuration != 0 {
		if err := s.d.Transcriber.Options().Bounds.Validate(req.SegmentDuration); err != nil {
			return fail(services.Wrap(services.ErrValidation, "api", "segment_duration", "", err))
		}
	}

	result, run, err := s.d.Transcriber.Run(ctx, pipeline.Request{
		URL:           url,
		Model:         req.Model,
		WindowSeconds: req.SegmentDuration,
		Language:      req.Language,
	})
	if err != nil {
		resp := TranscribeResponse{
			Envelope:       Failure(err),
			RunID:          run.ID,
			ProcessingTime: run.Elapsed.Seconds(),
		}
		return resp, err
	}
	return TranscribeResponse{
		Envelope:           ok(),
		RunID:              result.RunID,
		VideoInfo:          &result.Video,
		TranscriptSegments: result.Segments,
		FullTranscript:     result.FullText,
		Language:           result.Language,
		ProcessingTime:     result.Elapsed.Seconds(),
		WhisperModelUsed:   result.Model,
		SegmentDuration:    result.Window,
		TotalSegments:      len(result.Segments),
	}, nil
}

// CleanupAll empties the storage area.
func (s *Service) CleanupAll() (CleanupResponse, error) {
	count, err := s.d.Storage.RemoveAll()
	if err != nil {
		resp := CleanupResponse{Envelope: Failure(err), FilesCleaned: count}
		return resp, err
	}
	return CleanupResponse{
		Envelope:     ok(),
		FilesCleaned: count,
		Message:      fmt.Sprintf("Cleaned up %d files", count),
	}, nil
}

// CleanupFile removes one artifact path inside the storage area.
func (s *Service) CleanupFile(path string) (CleanupFileResponse, error) {
	if strings.TrimSpace(path) == "" {
		err := services.Wrap(services.ErrValidation, "api", "cleanup", "path is required", nil)
		return CleanupFileResponse{Envelope: Failure(err)}, err
	}
	if !s.d.Storage.Contains(path) {
		err := services.Wrap(services.ErrValidation, "api", "cleanup", fmt.Sprintf("path %q is outside the storage area", path), nil)
		return CleanupFileResponse{Envelope: Failure(err), Path: path}, err
	}
	removed, err := s.d.Storage.Remove(path)
	if err != nil {
		return CleanupFileResponse{Envelope: Failure(err), Path: path}, err
	}
	return CleanupFileResponse{Envelope: ok(), Path: path, Removed: removed}, nil
}

// Runs lists recorded runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int, states []pipeline.State) (RunsResponse, error) {
	if s.d.History == nil {
		err := services.Wrap(services.ErrConfiguration, "api", "runs", "run history unavailable", nil)
		return RunsResponse{Envelope: Failure(err)}, err
	}
	runs, err := s.d.History.List(ctx, runstore.ListOptions{Limit: limit, States: states})
	if err != nil {
		return RunsResponse{Envelope: Failure(err)}, err
	}
	if runs == nil {
		runs = []runstore.Record{}
	}
	return RunsResponse{Envelope: ok(), Runs: runs}, nil
}

// Run returns one recorded run with its transcript.
func (s *Service) Run(ctx context.Context, id string) (RunResponse, error) {
	if s.d.History == nil {
		err := services.Wrap(services.ErrConfiguration, "api", "runs", "run history unavailable", nil)
		return RunResponse{Envelope: Failure(err)}, err
	}
	record, err := s.d.History.Get(ctx, id)
	if err != nil {
		return RunResponse{Envelope: Failure(err)}, err
	}
	return RunResponse{Envelope: ok(), Run: record}, nil
}

// Health reports dependency availability. Status is "healthy" when every
// required binary is present and "degraded" otherwise.
func (s *Service) Health() HealthResponse {
	resp := HealthResponse{
		Envelope:     Envelope{Success: true},
		Status:       "healthy",
		Service:      ServiceName,
		Version:      Version,
		Backend:      s.d.Backend,
		Dependencies: map[string]string{},
		Device:       string(s.d.Models.Device()),
		Timestamp:    s.now().UTC().Format(dateTimeFormat),
	}
	if s.d.CheckDeps != nil {
		statuses := s.d.CheckDeps()
		for _, st := range statuses {
			if st.Available {
				resp.Dependencies[st.Name] = "available"
			} else {
				resp.Dependencies[st.Name] = "missing"
			}
		}
		if !deps.Healthy(statuses) {
			resp.Status = "degraded"
		}
	}
	if free, err := s.d.Storage.FreeBytes(); err == nil {
		resp.StorageFreeBytes = free
	}
	return resp
}

// Version describes the service build and capabilities.
func (s *Service) Version() VersionResponse {
	return VersionResponse{
		Envelope:        Envelope{Success: true},
		Version:         Version,
		SupportedModels: models.Names(),
		Features: []string{
			"YouTube video metadata lookup",
			"Audio download",
			"Speech recognition with word timestamps",
			"Fixed-width transcript windows",
			"Timestamped YouTube links",
			"Run history",
		},
		Device:  string(s.d.Models.Device()),
		Backend: s.d.Backend,
	}
}
