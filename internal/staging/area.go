package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tubescribe/internal/logging"
	"tubescribe/internal/services"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Area is the storage root for per-run audio directories.
type Area struct {
	root   string
	logger *slog.Logger
	statfs statfsFunc
}

// NewArea creates the storage root if needed.
func NewArea(root string, logger *slog.Logger) (*Area, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "staging", "init", "storage root is empty", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("staging: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create root: %w", err)
	}
	return &Area{
		root:   abs,
		logger: logging.NewComponentLogger(logger, "staging"),
		statfs: realStatfs,
	}, nil
}

// Root returns the absolute storage root.
func (a *Area) Root() string {
	return a.root
}

// NewRunDir creates a fresh, uniquely named directory for one run.
func (a *Area) NewRunDir(videoID string) (string, error) {
	prefix := sanitize(videoID)
	if prefix == "" {
		prefix = "run"
	}
	dir, err := os.MkdirTemp(a.root, prefix+"-")
	if err != nil {
		return "", fmt.Errorf("staging: create run dir: %w", err)
	}
	return dir, nil
}

// FreeBytes reports the space available to unprivileged users on the root's filesystem.
func (a *Area) FreeBytes() (uint64, error) {
	_, free, err := a.statfs(a.root)
	if err != nil {
		return 0, fmt.Errorf("staging: statfs: %w", err)
	}
	return free, nil
}

// Contains reports whether path lies strictly inside the storage root.
func (a *Area) Contains(path string) bool {
	_, ok := a.confine(path)
	return ok
}

func (a *Area) confine(path string) (string, bool) {
	if strings.TrimSpace(path) == "" {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(a.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

// runDirOf returns the top-level run directory that contains path.
func (a *Area) runDirOf(abs string) string {
	rel, _ := filepath.Rel(a.root, abs)
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return filepath.Join(a.root, first)
}

// Remove deletes a run directory or a file inside one. Removing the last file
// of a run directory removes the directory too. Paths outside the root are
// rejected with ErrValidation; missing paths report removed=false.
func (a *Area) Remove(path string) (bool, error) {
	abs, ok := a.confine(path)
	if !ok {
		return false, services.Wrap(services.ErrValidation, "staging", "remove", fmt.Sprintf("path %q is outside the storage area", path), nil)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("staging: stat %s: %w", abs, err)
	}
	if info.IsDir() {
		if err := os.RemoveAll(abs); err != nil {
			return false, fmt.Errorf("staging: remove %s: %w", abs, err)
		}
		return true, nil
	}
	if err := os.Remove(abs); err != nil {
		return false, fmt.Errorf("staging: remove %s: %w", abs, err)
	}
	if runDir := a.runDirOf(abs); runDir != abs {
		if entries, err := os.ReadDir(runDir); err == nil && len(entries) == 0 {
			_ = os.Remove(runDir)
		}
	}
	return true, nil
}

// RemoveAll deletes everything under the root and returns the number of
// files removed. Errors on individual entries are collected and the sweep
// continues.
func (a *Area) RemoveAll() (int, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("staging: read root: %w", err)
	}
	count := 0
	var errs []error
	for _, entry := range entries {
		path := filepath.Join(a.root, entry.Name())
		files := countFiles(path)
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		count += files
	}
	if len(errs) > 0 {
		return count, fmt.Errorf("staging: remove all: %w", errors.Join(errs...))
	}
	a.logger.Info("storage area emptied",
		logging.Int("files_removed", count),
		logging.String(logging.FieldEventType, "storage_cleanup"),
	)
	return count, nil
}

func countFiles(path string) int {
	n := 0
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_")
}
