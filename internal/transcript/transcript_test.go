package transcript_test

import (
	"math"
	"testing"

	"tubescribe/internal/transcript"
)

func TestDurationAndJoinedText(t *testing.T) {
	var empty transcript.Result
	if empty.Duration() != 0 {
		t.Fatalf("expected zero duration, got %v", empty.Duration())
	}

	result := transcript.Result{Segments: []transcript.RawSegment{
		{Start: 0, End: 4.2, Text: " hello there "},
		{Start: 4.2, End: 9.5, Text: "general kenobi", Words: []transcript.Word{{Text: "general"}, {Text: "kenobi"}}},
	}}
	if result.Duration() != 9.5 {
		t.Fatalf("unexpected duration %v", result.Duration())
	}
	if got := result.JoinedText(); got != "hello there general kenobi" {
		t.Fatalf("unexpected joined text %q", got)
	}
	if result.WordCount() != 2 {
		t.Fatalf("unexpected word count %d", result.WordCount())
	}

	result.Text = "  explicit  "
	if got := result.JoinedText(); got != "explicit" {
		t.Fatalf("expected explicit text to win, got %q", got)
	}
}

func TestClampConfidence(t *testing.T) {
	tests := map[float64]float64{-0.5: 0, 0.25: 0.25, 1.7: 1, math.NaN(): 0}
	for in, want := range tests {
		if got := transcript.ClampConfidence(in); got != want {
			t.Fatalf("ClampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}
