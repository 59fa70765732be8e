package staging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubescribe/internal/logging"
	"tubescribe/internal/services"
)

func newTestArea(t *testing.T) *Area {
	t.Helper()
	area, err := NewArea(filepath.Join(t.TempDir(), "audio"), logging.NewNop())
	if err != nil {
		t.Fatalf("NewArea returned error: %v", err)
	}
	return area
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewAreaRejectsEmptyRoot(t *testing.T) {
	if _, err := NewArea("  ", nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRunDirIsUniquePerCall(t *testing.T) {
	area := newTestArea(t)
	first, err := area.NewRunDir("dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("NewRunDir returned error: %v", err)
	}
	second, err := area.NewRunDir("dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("NewRunDir returned error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct run dirs, got %q twice", first)
	}
	if !strings.HasPrefix(filepath.Base(first), "dQw4w9WgXcQ-") {
		t.Fatalf("expected video id prefix, got %q", first)
	}
	if !area.Contains(first) {
		t.Fatalf("expected %q inside root", first)
	}

	odd, err := area.NewRunDir("../../etc")
	if err != nil {
		t.Fatalf("NewRunDir returned error: %v", err)
	}
	if filepath.Dir(odd) != area.Root() {
		t.Fatalf("expected sanitized dir directly under root, got %q", odd)
	}
}

func TestRemoveFileRemovesEmptyRunDir(t *testing.T) {
	area := newTestArea(t)
	dir, _ := area.NewRunDir("abc")
	file := filepath.Join(dir, "abc.m4a")
	writeFile(t, file, 10)

	removed, err := area.Remove(file)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected empty run dir removed, stat err=%v", err)
	}

	removed, err = area.Remove(file)
	if err != nil || removed {
		t.Fatalf("expected missing file to report false, got %v, %v", removed, err)
	}
}

func TestRemoveRejectsPathsOutsideRoot(t *testing.T) {
	area := newTestArea(t)
	outside := filepath.Join(t.TempDir(), "keep.txt")
	writeFile(t, outside, 1)

	for _, path := range []string{outside, area.Root(), filepath.Join(area.Root(), ".."), ""} {
		if _, err := area.Remove(path); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Remove(%q): expected validation error, got %v", path, err)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("outside file must survive: %v", err)
	}
}

func TestRemoveAllCountsFiles(t *testing.T) {
	area := newTestArea(t)
	for _, id := range []string{"a", "b"} {
		dir, _ := area.NewRunDir(id)
		writeFile(t, filepath.Join(dir, id+".m4a"), 5)
	}
	writeFile(t, filepath.Join(area.Root(), "stray.webm"), 5)

	count, err := area.RemoveAll()
	if err != nil {
		t.Fatalf("RemoveAll returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 files removed, got %d", count)
	}
	entries, _ := os.ReadDir(area.Root())
	if len(entries) != 0 {
		t.Fatalf("expected empty root, got %d entries", len(entries))
	}
}

func TestFreeBytesUsesStatfs(t *testing.T) {
	area := newTestArea(t)
	area.statfs = func(string) (uint64, uint64, error) { return 100, 42, nil }
	free, err := area.FreeBytes()
	if err != nil || free != 42 {
		t.Fatalf("FreeBytes = %d, %v", free, err)
	}
	area.statfs = func(string) (uint64, uint64, error) { return 0, 0, errors.New("boom") }
	if _, err := area.FreeBytes(); err == nil {
		t.Fatal("expected statfs error")
	}
}
