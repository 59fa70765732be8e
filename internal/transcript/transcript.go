// Package transcript defines the recognizer output and the fixed-window
// transcript derived from it.
package transcript

import (
	"math"
	"strings"
)

// Word is a single recognized token with its time interval in seconds.
type Word struct {
	Text       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// RawSegment is a recognizer-chosen span of speech. Segment boundaries do not
// follow any fixed grid.
type RawSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

// Result is the complete output of one recognition call.
type Result struct {
	Text     string       `json:"text"`
	Language string       `json:"language"`
	Segments []RawSegment `json:"segments"`
}

// Duration returns the end time of the last segment, or 0 when empty.
func (r Result) Duration() float64 {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].End
}

// WordCount returns the number of words across all segments.
func (r Result) WordCount() int {
	n := 0
	for _, seg := range r.Segments {
		n += len(seg.Words)
	}
	return n
}

// JoinedText rebuilds the full transcript from segment texts when the
// recognizer did not supply one.
func (r Result) JoinedText() string {
	if text := strings.TrimSpace(r.Text); text != "" {
		return text
	}
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// FixedSegment is one non-empty navigation window of the transcript.
type FixedSegment struct {
	ID    int     `json:"segment_id" yaml:"segment_id"`
	Start float64 `json:"start_time" yaml:"start_time"`
	End   float64 `json:"end_time" yaml:"end_time"`
	Text  string  `json:"text" yaml:"text"`
	Link  string  `json:"youtube_link" yaml:"youtube_link"`
}

// ClampConfidence bounds a recognizer score to [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
