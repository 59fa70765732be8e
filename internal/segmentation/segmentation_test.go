package segmentation_test

import (
	"errors"
	"math"
	"testing"

	"tubescribe/internal/segmentation"
	"tubescribe/internal/transcript"
)

func word(text string, start, end float64) transcript.Word {
	return transcript.Word{Text: text, Start: start, End: end, Confidence: 0.9}
}

func TestBucketHelloWorldScenario(t *testing.T) {
	result := transcript.Result{Segments: []transcript.RawSegment{{
		ID: 0, Start: 0, End: 10, Text: "hello world",
		Words: []transcript.Word{word("hello", 0, 0.5), word("world", 9.6, 10)},
	}}}

	got, err := segmentation.Bucket(result, 8)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	want := []transcript.FixedSegment{
		{ID: 1, Start: 0, End: 8, Text: "hello"},
		{ID: 2, Start: 8, End: 10, Text: "world"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBucketEmptyResult(t *testing.T) {
	got, err := segmentation.Bucket(transcript.Result{}, 8)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestBucketDropsEmptyWindowsWithoutConsumingIDs(t *testing.T) {
	result := transcript.Result{Segments: []transcript.RawSegment{
		{Start: 0, End: 2, Words: []transcript.Word{word("a", 0.1, 0.4)}},
		{Start: 20, End: 25, Words: []transcript.Word{word("b", 21, 22)}},
	}}
	got, err := segmentation.Bucket(result, 5)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %+v", got)
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("expected gapless ids, got %d and %d", got[0].ID, got[1].ID)
	}
	if got[1].Start != 20 || got[1].End != 25 {
		t.Fatalf("unexpected second window [%v,%v)", got[1].Start, got[1].End)
	}
}

func TestBucketStraddlingWordAppearsInBothWindows(t *testing.T) {
	result := transcript.Result{Segments: []transcript.RawSegment{{
		Start: 0, End: 16,
		Words: []transcript.Word{word("one", 1, 2), word("bridge", 7.5, 8.5), word("two", 12, 13)},
	}}}
	got, err := segmentation.Bucket(result, 8)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %+v", got)
	}
	if got[0].Text != "one bridge" || got[1].Text != "bridge two" {
		t.Fatalf("expected boundary word in both windows, got %q and %q", got[0].Text, got[1].Text)
	}
}

func TestBucketContainedWordAppearsOnce(t *testing.T) {
	result := transcript.Result{Segments: []transcript.RawSegment{{
		Start: 0, End: 16,
		Words: []transcript.Word{word("inside", 3, 4)},
	}}}
	got, err := segmentation.Bucket(result, 8)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "inside" || got[0].Start != 0 {
		t.Fatalf("expected single window with word, got %+v", got)
	}
}

func TestBucketWordEndingOnBoundaryStaysInFirstWindow(t *testing.T) {
	result := transcript.Result{Segments: []transcript.RawSegment{{
		Start: 0, End: 16,
		Words: []transcript.Word{word("edge", 7, 8), word("next", 8, 9)},
	}}}
	got, err := segmentation.Bucket(result, 8)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	if len(got) != 2 || got[0].Text != "edge" || got[1].Text != "next" {
		t.Fatalf("expected half-open windows, got %+v", got)
	}
}

func TestBucketWholeNumberOfWindowsHasNoTrailingSliver(t *testing.T) {
	// 3*0.7 is 2.0999999999999996 in float64, just below T = 2.1.
	result := transcript.Result{Segments: []transcript.RawSegment{{
		Start: 0, End: 2.1,
		Words: []transcript.Word{word("a", 0.1, 0.6), word("b", 0.8, 1.3), word("c", 1.5, 2.1)},
	}}}
	got, err := segmentation.Bucket(result, 0.7)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(got), got)
	}
	last := got[2]
	if last.ID != 3 || last.Text != "c" || last.End != 2.1 {
		t.Fatalf("last segment = %+v, want id 3 text c ending at 2.1", last)
	}
}

func TestBucketPreservesWordOrderAndLeadingSpaces(t *testing.T) {
	result := transcript.Result{Segments: []transcript.RawSegment{
		{Start: 0, End: 3, Words: []transcript.Word{word(" Hello", 0, 1), word(" there,", 1, 2)}},
		{Start: 3, End: 6, Words: []transcript.Word{word("friend", 3, 4)}},
	}}
	got, err := segmentation.Bucket(result, 10)
	if err != nil {
		t.Fatalf("Bucket returned error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Hello there, friend" {
		t.Fatalf("unexpected text: %+v", got)
	}
	if got[0].End != 6 {
		t.Fatalf("expected window clipped to T=6, got %v", got[0].End)
	}
}

func TestBucketInvariants(t *testing.T) {
	var words []transcript.Word
	for i := 0; i < 200; i++ {
		start := float64(i) * 0.37
		words = append(words, word("w", start, start+0.3))
	}
	result := transcript.Result{Segments: []transcript.RawSegment{{Start: 0, End: 74.3, Words: words}}}
	total := result.Duration()

	for _, width := range []float64{1, 2.5, 7, 8, 13.3, 60, 100} {
		got, err := segmentation.Bucket(result, width)
		if err != nil {
			t.Fatalf("width %v: Bucket returned error: %v", width, err)
		}
		if len(got) == 0 {
			t.Fatalf("width %v: expected segments", width)
		}
		for i, seg := range got {
			if seg.ID != i+1 {
				t.Fatalf("width %v: id %d at index %d", width, seg.ID, i)
			}
			if seg.Start < 0 || seg.End > total || seg.Start >= seg.End {
				t.Fatalf("width %v: bad window [%v,%v)", width, seg.Start, seg.End)
			}
			if i > 0 && seg.Start < got[i-1].End {
				t.Fatalf("width %v: windows overlap: %+v then %+v", width, got[i-1], seg)
			}
		}
		if last := got[len(got)-1]; last.End > total {
			t.Fatalf("width %v: last end %v beyond T=%v", width, last.End, total)
		}
	}
}

func TestBucketIsRepeatable(t *testing.T) {
	result := transcript.Result{Segments: []transcript.RawSegment{{
		Start: 0, End: 10, Words: []transcript.Word{word("a", 0, 1), word("b", 5, 6), word("c", 9, 10)},
	}}}
	first, _ := segmentation.Bucket(result, 4)
	_, _ = segmentation.Bucket(result, 2)
	again, _ := segmentation.Bucket(result, 4)
	if len(first) != len(again) {
		t.Fatalf("expected repeatable output, got %d vs %d", len(first), len(again))
	}
	for i := range first {
		if first[i] != again[i] {
			t.Fatalf("segment %d changed: %+v vs %+v", i, first[i], again[i])
		}
	}
}

func TestBucketRejectsNonPositiveWidth(t *testing.T) {
	for _, width := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := segmentation.Bucket(transcript.Result{}, width); !errors.Is(err, segmentation.ErrInvalidWidth) {
			t.Fatalf("width %v: expected ErrInvalidWidth, got %v", width, err)
		}
	}
}

func TestBoundsValidate(t *testing.T) {
	bounds := segmentation.DefaultBounds()
	tests := []struct {
		width float64
		ok    bool
	}{
		{0.5, false},
		{1, true},
		{8, true},
		{60, true},
		{61, false},
		{math.NaN(), false},
	}
	for _, tt := range tests {
		err := bounds.Validate(tt.width)
		if tt.ok && err != nil {
			t.Fatalf("width %v: unexpected error %v", tt.width, err)
		}
		if !tt.ok && !errors.Is(err, segmentation.ErrInvalidWidth) {
			t.Fatalf("width %v: expected ErrInvalidWidth, got %v", tt.width, err)
		}
	}
}
