package api

import (
	"tubescribe/internal/models"
	"tubescribe/internal/runstore"
	"tubescribe/internal/transcript"
	"tubescribe/internal/youtube"
)

// Version is the service version reported by /version and /health.
const Version = "1.0.0"

// ServiceName identifies this service in health payloads.
const ServiceName = "tubescribe"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Envelope carries the outcome tag shared by every response. A failed
// operation sets Success=false with a message and a stable error kind.
type Envelope struct {
	Success   bool   `json:"success" yaml:"success"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

// URLRequest is the body of /video-info and /download-audio.
type URLRequest struct {
	URL string `json:"url"`
}

// TranscribeRequest is the body of /transcribe.
type TranscribeRequest struct {
	URL             string  `json:"url"`
	Model           string  `json:"model,omitempty"`
	SegmentDuration float64 `json:"segment_duration,omitempty"`
	Language        string  `json:"language,omitempty"`
}

// VideoInfoResponse answers get_video_info.
type VideoInfoResponse struct {
	Envelope  `yaml:",inline"`
	VideoInfo *youtube.VideoInfo `json:"video_info,omitempty" yaml:"video_info,omitempty"`
}

// DownloadResponse answers download_audio.
type DownloadResponse struct {
	Envelope  `yaml:",inline"`
	VideoID   string `json:"video_id,omitempty" yaml:"video_id,omitempty"`
	AudioPath string `json:"audio_path,omitempty" yaml:"audio_path,omitempty"`
	FileSize  int64  `json:"file_size,omitempty" yaml:"file_size,omitempty"`
}

// ModelsResponse answers list_models. CurrentModel is null until a model
// has been loaded.
type ModelsResponse struct {
	Envelope     `yaml:",inline"`
	Models       []models.Descriptor `json:"models" yaml:"models"`
	CurrentModel *string             `json:"current_model" yaml:"current_model"`
	LoadedModels []string            `json:"loaded_models" yaml:"loaded_models"`
	Device       string              `json:"device" yaml:"device"`
}

// TranscribeResponse answers transcribe.
type TranscribeResponse struct {
	Envelope           `yaml:",inline"`
	RunID              string                    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	VideoInfo          *youtube.VideoInfo        `json:"video_info,omitempty" yaml:"video_info,omitempty"`
	TranscriptSegments []transcript.FixedSegment `json:"transcript_segments,omitempty" yaml:"transcript_segments,omitempty"`
	FullTranscript     string                    `json:"full_transcript,omitempty" yaml:"full_transcript,omitempty"`
	Language           string                    `json:"language,omitempty" yaml:"language,omitempty"`
	ProcessingTime     float64                   `json:"processing_time" yaml:"processing_time"`
	WhisperModelUsed   string                    `json:"whisper_model_used,omitempty" yaml:"whisper_model_used,omitempty"`
	SegmentDuration    float64                   `json:"segment_duration,omitempty" yaml:"segment_duration,omitempty"`
	TotalSegments      int                       `json:"total_segments" yaml:"total_segments"`
}

// CleanupResponse answers cleanup_all.
type CleanupResponse struct {
	Envelope     `yaml:",inline"`
	FilesCleaned int    `json:"files_cleaned" yaml:"files_cleaned"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
}

// CleanupFileResponse answers cleanup_one.
type CleanupFileResponse struct {
	Envelope `yaml:",inline"`
	Path     string `json:"path" yaml:"path"`
	Removed  bool   `json:"removed" yaml:"removed"`
}

// HealthResponse reports dependency availability.
type HealthResponse struct {
	Envelope         `yaml:",inline"`
	Status           string            `json:"status" yaml:"status"`
	Service          string            `json:"service" yaml:"service"`
	Version          string            `json:"version" yaml:"version"`
	Backend          string            `json:"backend" yaml:"backend"`
	Dependencies     map[string]string `json:"dependencies" yaml:"dependencies"`
	Device           string            `json:"device" yaml:"device"`
	StorageFreeBytes uint64            `json:"storage_free_bytes" yaml:"storage_free_bytes"`
	Timestamp        string            `json:"timestamp" yaml:"timestamp"`
}

// VersionResponse describes the running service.
type VersionResponse struct {
	Envelope        `yaml:",inline"`
	Version         string   `json:"version" yaml:"version"`
	SupportedModels []string `json:"supported_models" yaml:"supported_models"`
	Features        []string `json:"features" yaml:"features"`
	Device          string   `json:"device" yaml:"device"`
	Backend         string   `json:"backend" yaml:"backend"`
}

// RunsResponse lists recorded runs.
type RunsResponse struct {
	Envelope `yaml:",inline"`
	Runs     []runstore.Record `json:"runs" yaml:"runs"`
}

// RunResponse returns one recorded run.
type RunResponse struct {
	Envelope `yaml:",inline"`
	Run      *runstore.Record `json:"run,omitempty" yaml:"run,omitempty"`
}
