package pipeline

import (
	"context"
	"time"

	"tubescribe/internal/models"
	"tubescribe/internal/segmentation"
	"tubescribe/internal/services"
	"tubescribe/internal/transcript"
	"tubescribe/internal/youtube"
)

// State is a position in the run state machine.
type State string

const (
	StateIntake            State = "intake"
	StateMetadataFetched   State = "metadata_fetched"
	StateAudioMaterialized State = "audio_materialized"
	StateTranscribed       State = "transcribed"
	StateSegmented         State = "segmented"
	StateLinked            State = "linked"
	StateDone              State = "done"
	// StateCleanupAndFail is reached from any state after audio materialization.
	StateCleanupAndFail State = "cleanup_and_fail"
	// StateFailed is an abort before any audio exists.
	StateFailed State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateCleanupAndFail, StateFailed:
		return true
	default:
		return false
	}
}

// Retriever resolves references, metadata, and audio.
type Retriever interface {
	Validate(url string) (youtube.Reference, error)
	FetchMetadata(ctx context.Context, url string) (youtube.VideoInfo, error)
	Download(ctx context.Context, url string) (*youtube.Artifact, error)
}

// ModelSource hands out pinned recognition models.
type ModelSource interface {
	Acquire(ctx context.Context, name string) (*models.Lease, error)
}

// Releaser takes ownership of a finished run's artifact path.
type Releaser interface {
	Schedule(path string)
}

// Recorder persists run history. Recorder failures are logged and never
// affect the run outcome.
type Recorder interface {
	Begin(ctx context.Context, run Run) error
	Finish(ctx context.Context, run Run) error
}

// Options carries the defaults applied to requests that omit a field.
type Options struct {
	DefaultModel    string
	DefaultWindow   float64
	DefaultLanguage string
	Bounds          segmentation.Bounds
}

// Request describes one transcription.
type Request struct {
	URL           string
	Model         string
	WindowSeconds float64
	Language      string
}

// Result is the outcome of a successful run.
type Result struct {
	RunID    string                    `json:"run_id" yaml:"run_id"`
	Video    youtube.VideoInfo         `json:"video_info" yaml:"video_info"`
	Segments []transcript.FixedSegment `json:"transcript_segments" yaml:"transcript_segments"`
	FullText string                    `json:"full_transcript" yaml:"full_transcript"`
	Language string                    `json:"language" yaml:"language"`
	Model    string                    `json:"whisper_model_used" yaml:"whisper_model_used"`
	Window   float64                   `json:"segment_duration" yaml:"segment_duration"`
	Elapsed  time.Duration             `json:"-" yaml:"-"`
}

// Run is the history record of one pipeline execution.
type Run struct {
	ID            string
	URL           string
	VideoID       string
	Title         string
	Model         string
	WindowSeconds float64
	Language      string
	State         State
	ErrorKind     services.Kind
	ErrorMessage  string
	SegmentCount  int
	Result        *Result
	StartedAt     time.Time
	FinishedAt    time.Time
	Elapsed       time.Duration
}
