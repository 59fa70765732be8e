package youtube

import (
	"strings"

	"tubescribe/internal/deeplink"
	"tubescribe/internal/services"
)

// Reference is a parsed video reference. A Reference is only ever produced
// with a non-empty VideoID.
type Reference struct {
	VideoID      string `json:"video_id"`
	URL          string `json:"url"`
	CanonicalURL string `json:"canonical_url"`
}

// ParseReference extracts the video identifier from raw.
func ParseReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	id, ok := deeplink.VideoID(trimmed)
	if !ok {
		return Reference{}, services.Wrap(services.ErrInvalidReference, "intake", "parse url", "Invalid YouTube URL format", nil)
	}
	return Reference{
		VideoID:      id,
		URL:          trimmed,
		CanonicalURL: deeplink.WatchBase + id,
	}, nil
}

// VideoInfo is the metadata subset reported to callers.
type VideoInfo struct {
	VideoID     string  `json:"video_id" yaml:"video_id"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Duration    float64 `json:"duration" yaml:"duration"`
	Uploader    string  `json:"uploader,omitempty" yaml:"uploader,omitempty"`
	UploadDate  string  `json:"upload_date,omitempty" yaml:"upload_date,omitempty"`
	ViewCount   int64   `json:"view_count,omitempty" yaml:"view_count,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	WebpageURL  string  `json:"webpage_url,omitempty" yaml:"webpage_url,omitempty"`
}

// Artifact is a materialised audio file owned by exactly one run. Dir is the
// run directory that must be released when the run ends.
type Artifact struct {
	VideoID string `json:"video_id"`
	Path    string `json:"audio_path"`
	Dir     string `json:"-"`
	Size    int64  `json:"file_size"`
}

type ytdlpFormat struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	ACodec   string `json:"acodec"`
}

// ytdlpOutput is the subset of yt-dlp's --dump-json document we read.
type ytdlpOutput struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Duration    float64       `json:"duration"`
	Uploader    string        `json:"uploader"`
	UploadDate  string        `json:"upload_date"`
	ViewCount   int64         `json:"view_count"`
	Thumbnail   string        `json:"thumbnail"`
	WebpageURL  string        `json:"webpage_url"`
	Formats     []ytdlpFormat `json:"formats"`
}

func (o ytdlpOutput) info() VideoInfo {
	return VideoInfo{
		VideoID:     o.ID,
		Title:       o.Title,
		Description: o.Description,
		Duration:    o.Duration,
		Uploader:    o.Uploader,
		UploadDate:  o.UploadDate,
		ViewCount:   o.ViewCount,
		Thumbnail:   o.Thumbnail,
		WebpageURL:  o.WebpageURL,
	}
}

func (o ytdlpOutput) hasAudio() bool {
	if len(o.Formats) == 0 {
		// Some extractors omit the list; let the download decide.
		return true
	}
	for _, f := range o.Formats {
		if f.ACodec != "" && f.ACodec != "none" {
			return true
		}
	}
	return false
}
