// Package segmentation re-buckets recognizer output into fixed-width
// navigation windows.
//
// Bucket is pure: it performs no I/O, keeps no state, and may be called
// repeatedly with different widths against the same transcript.
package segmentation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"tubescribe/internal/transcript"
)

// ErrInvalidWidth reports a window width outside the configured bounds.
var ErrInvalidWidth = errors.New("invalid window width")

// Bounds constrains the window width accepted by Bucket callers.
type Bounds struct {
	Min float64
	Max float64
}

// DefaultBounds returns the 1–60 second range.
func DefaultBounds() Bounds {
	return Bounds{Min: 1, Max: 60}
}

// Validate reports whether width is finite, positive, and within the bounds.
func (b Bounds) Validate(width float64) error {
	if math.IsNaN(width) || math.IsInf(width, 0) || width <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidWidth, width)
	}
	if width < b.Min || (b.Max > 0 && width > b.Max) {
		return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidWidth, width, b.Min, b.Max)
	}
	return nil
}

const boundaryEpsilon = 1e-9

// Bucket partitions [0, T) into windows of width seconds, where T is the end
// of the last raw segment, and returns one FixedSegment per window that
// overlaps at least one word. The final window is clipped to T.
//
// A word belongs to window [a, b) when start < b and end > a, so a word that
// straddles a boundary is reported in both adjacent windows. Windows with no
// words are dropped and do not consume an id; ids run 1..N.
//
// Link is left empty; see package deeplink.
func Bucket(result transcript.Result, width float64) ([]transcript.FixedSegment, error) {
	if math.IsNaN(width) || math.IsInf(width, 0) || width <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWidth, width)
	}
	total := result.Duration()
	if len(result.Segments) == 0 || total <= 0 {
		return []transcript.FixedSegment{}, nil
	}

	words := flatten(result.Segments)
	out := make([]transcript.FixedSegment, 0, int(math.Ceil(total/width)))
	nextID := 1

	// Starts are index*width, never accumulated. A start or end within
	// boundaryEpsilon of T is rounding error in the product and counts as T,
	// so a whole number of windows never yields a trailing sliver.
	for i := 0; ; i++ {
		start := float64(i) * width
		if start >= total-boundaryEpsilon {
			break
		}
		end := start + width
		if end >= total-boundaryEpsilon {
			end = total
		}

		text := windowText(words, start, end)
		if text == "" {
			continue
		}
		out = append(out, transcript.FixedSegment{
			ID:    nextID,
			Start: start,
			End:   end,
			Text:  text,
		})
		nextID++
	}
	return out, nil
}

func flatten(segments []transcript.RawSegment) []transcript.Word {
	n := 0
	for _, seg := range segments {
		n += len(seg.Words)
	}
	words := make([]transcript.Word, 0, n)
	for _, seg := range segments {
		words = append(words, seg.Words...)
	}
	return words
}

func windowText(words []transcript.Word, start, end float64) string {
	var b strings.Builder
	for _, w := range words {
		if !(w.Start < end && w.End > start) {
			continue
		}
		if w.Text == "" {
			continue
		}
		// Recognizers differ: some emit " word" with its leading space,
		// others emit bare tokens.
		if b.Len() > 0 && !startsWithSpace(w.Text) {
			b.WriteByte(' ')
		}
		b.WriteString(w.Text)
	}
	return strings.TrimSpace(b.String())
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}
