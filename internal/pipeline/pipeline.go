package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tubescribe/internal/deeplink"
	langpkg "tubescribe/internal/language"
	"tubescribe/internal/logging"
	"tubescribe/internal/models"
	"tubescribe/internal/segmentation"
	"tubescribe/internal/services"
	"tubescribe/internal/transcript"
	"tubescribe/internal/youtube"
)

// Pipeline runs transcriptions against its collaborators.
type Pipeline struct {
	retriever Retriever
	models    ModelSource
	releaser  Releaser
	recorder  Recorder
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a pipeline. Zero-valued options fall back to the "small"
// model, 8 second windows, and the default width bounds.
func New(retriever Retriever, source ModelSource, releaser Releaser, opts Options, logger *slog.Logger) *Pipeline {
	if strings.TrimSpace(opts.DefaultModel) == "" {
		opts.DefaultModel = "small"
	}
	if opts.DefaultWindow <= 0 {
		opts.DefaultWindow = 8
	}
	if opts.Bounds == (segmentation.Bounds{}) {
		opts.Bounds = segmentation.DefaultBounds()
	}
	return &Pipeline{
		retriever: retriever,
		models:    source,
		releaser:  releaser,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		now:       time.Now,
	}
}

// WithRecorder attaches run history persistence.
func (p *Pipeline) WithRecorder(recorder Recorder) {
	p.recorder = recorder
}

// Options returns the defaults the pipeline applies.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run executes the state machine for req. On failure the returned error
// carries a services kind; the run id is available from the returned Run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, Run, error) {
	run := Run{
		ID:            uuid.NewString(),
		URL:           strings.TrimSpace(req.URL),
		Model:         models.NormalizeName(req.Model),
		WindowSeconds: req.WindowSeconds,
		Language:      req.Language,
		State:         StateIntake,
		StartedAt:     p.now(),
	}
	if run.Model == "" {
		run.Model = p.opts.DefaultModel
	}
	if run.WindowSeconds == 0 {
		run.WindowSeconds = p.opts.DefaultWindow
	}
	if strings.TrimSpace(run.Language) == "" {
		run.Language = p.opts.DefaultLanguage
	}

	ctx = services.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, p.logger)
	p.begin(ctx, logger, run)

	var artifact *youtube.Artifact
	defer func() {
		if artifact != nil {
			p.release(logger, artifact)
		}
	}()

	result, err := p.execute(ctx, logger, &run, &artifact)

	run.FinishedAt = p.now()
	run.Elapsed = run.FinishedAt.Sub(run.StartedAt)
	if err != nil {
		if artifact != nil {
			run.State = StateCleanupAndFail
		} else {
			run.State = StateFailed
		}
		run.ErrorKind = services.KindOf(err)
		run.ErrorMessage = err.Error()
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.String(logging.FieldStage, string(run.State)),
			logging.String(logging.FieldErrorKind, string(run.ErrorKind)),
			logging.Duration("elapsed", run.Elapsed),
			logging.Error(err),
		)
		p.finish(ctx, logger, run)
		return nil, run, err
	}

	run.State = StateDone
	result.RunID = run.ID
	result.Elapsed = run.Elapsed
	run.Result = result
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_completed"),
		logging.String("video_id", run.VideoID),
		logging.String("model", run.Model),
		logging.Int("segments", run.SegmentCount),
		logging.Duration("elapsed", run.Elapsed),
	)
	p.finish(ctx, logger, run)
	return result, run, nil
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, run *Run, artifact **youtube.Artifact) (*Result, error) {
	ref, err := p.retriever.Validate(run.URL)
	if err != nil {
		return nil, err
	}
	run.VideoID = ref.VideoID
	if _, ok := models.Lookup(run.Model); !ok {
		return nil, services.Wrap(
			services.ErrUnknownModel,
			string(StateIntake),
			"model",
			fmt.Sprintf("Invalid model %q. Available: %s", run.Model, strings.Join(models.Names(), ", ")),
			nil,
		)
	}
	language, err := langpkg.NormalizeHint(run.Language)
	if err != nil {
		return nil, err
	}
	run.Language = language

	info, err := p.retriever.FetchMetadata(ctx, ref.CanonicalURL)
	if err != nil {
		return nil, err
	}
	run.Title = info.Title
	p.advance(logger, run, StateMetadataFetched)

	downloaded, err := p.retriever.Download(ctx, ref.CanonicalURL)
	if err != nil {
		return nil, err
	}
	if downloaded == nil {
		return nil, services.Wrap(services.ErrRetrieval, string(StateMetadataFetched), "download", "retriever returned no artifact", nil)
	}
	*artifact = downloaded
	p.advance(logger, run, StateAudioMaterialized,
		logging.String("audio_path", downloaded.Path),
		logging.Int64("file_size", downloaded.Size),
	)

	raw, err := p.recognize(ctx, run.Model, downloaded.Path, language)
	if err != nil {
		return nil, err
	}
	p.advance(logger, run, StateTranscribed,
		logging.Int("raw_segments", len(raw.Segments)),
		logging.String("language", raw.Language),
	)

	if err := p.opts.Bounds.Validate(run.WindowSeconds); err != nil {
		return nil, services.Wrap(services.ErrInternalSegmentation, string(StateTranscribed), "bucket", "", err)
	}
	segments, err := segmentation.Bucket(raw, run.WindowSeconds)
	if err != nil {
		return nil, services.Wrap(services.ErrInternalSegmentation, string(StateTranscribed), "bucket", "", err)
	}
	run.SegmentCount = len(segments)
	p.advance(logger, run, StateSegmented, logging.Int("segments", len(segments)))

	for i := range segments {
		link, err := deeplink.Build(ref.CanonicalURL, segments[i].Start)
		if err != nil {
			return nil, services.Wrap(services.ErrInternalSegmentation, string(StateSegmented), "link", fmt.Sprintf("segment %d", segments[i].ID), err)
		}
		segments[i].Link = link
	}
	p.advance(logger, run, StateLinked)

	return &Result{
		Video:    info,
		Segments: segments,
		FullText: raw.JoinedText(),
		Language: raw.Language,
		Model:    run.Model,
		Window:   run.WindowSeconds,
	}, nil
}

func (p *Pipeline) recognize(ctx context.Context, name, audioPath, language string) (transcript.Result, error) {
	lease, err := p.models.Acquire(ctx, name)
	if err != nil {
		return transcript.Result{}, err
	}
	defer lease.Release()

	result, err := lease.Model().Transcribe(ctx, audioPath, models.Options{Language: language})
	if err != nil {
		if services.KindOf(err) == services.KindInternal {
			err = services.Wrap(services.ErrRecognition, string(StateAudioMaterialized), "transcribe", name, err)
		}
		return transcript.Result{}, err
	}
	return result, nil
}

func (p *Pipeline) advance(logger *slog.Logger, run *Run, next State, attrs ...logging.Attr) {
	run.State = next
	attrs = append([]logging.Attr{
		logging.String(logging.FieldStage, string(next)),
		logging.String(logging.FieldEventType, "stage_complete"),
	}, attrs...)
	logger.Debug("stage complete", logging.Args(attrs...)...)
}

func (p *Pipeline) release(logger *slog.Logger, artifact *youtube.Artifact) {
	path := artifact.Dir
	if path == "" {
		path = artifact.Path
	}
	if p.releaser == nil {
		logging.WarnWithContext(logger, "no releaser configured; artifact left in place", "artifact_orphaned",
			logging.String("path", path),
		)
		return
	}
	p.releaser.Schedule(path)
}

func (p *Pipeline) begin(ctx context.Context, logger *slog.Logger, run Run) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Begin(ctx, run); err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "run_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will be missing from history"),
		)
	}
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, run Run) {
	if p.recorder == nil {
		return
	}
	// The caller's context may already be cancelled.
	if err := p.recorder.Finish(context.WithoutCancel(ctx), run); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(logger, "run history update failed", "run_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history shows stale state"),
		)
	}
}
