package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"tubescribe/internal/logging"
	"tubescribe/internal/services"
)

// AudioExtensions lists the file extensions accepted as downloaded audio, in
// order of preference.
var AudioExtensions = []string{".m4a", ".webm", ".mp4", ".mp3", ".wav", ".ogg", ".opus"}

const missingAudioMessage = "Downloaded audio file not found. Video may be unavailable, age-restricted, or region-blocked."

// Storage allocates and releases per-run directories.
type Storage interface {
	NewRunDir(videoID string) (string, error)
	FreeBytes() (uint64, error)
	Remove(path string) (bool, error)
}

// Runner executes an external command and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)

// Config captures yt-dlp invocation settings.
type Config struct {
	Binary          string
	Format          string
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	MinFreeBytes    uint64
}

// Client wraps the yt-dlp binary.
type Client struct {
	cfg     Config
	storage Storage
	logger  *slog.Logger
	run     Runner
}

// NewClient constructs a yt-dlp client that downloads into storage.
func NewClient(cfg Config, storage Storage, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "yt-dlp"
	}
	return &Client{
		cfg:     cfg,
		storage: storage,
		logger:  logging.NewComponentLogger(logger, "youtube"),
		run:     execRunner,
	}
}

// WithRunner replaces the command runner (for testing).
func (c *Client) WithRunner(runner Runner) {
	if runner != nil {
		c.run = runner
	}
}

// Validate parses url into a Reference without touching the network.
func (c *Client) Validate(url string) (Reference, error) {
	return ParseReference(url)
}

// Version returns the yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.run(ctx, c.cfg.Binary, "--version")
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "retrieval", "yt-dlp --version", lastErrorLine(stderr), err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// FetchMetadata returns the video's metadata without downloading media.
func (c *Client) FetchMetadata(ctx context.Context, url string) (VideoInfo, error) {
	ref, err := ParseReference(url)
	if err != nil {
		return VideoInfo{}, err
	}
	ctx, cancel := withTimeout(ctx, c.cfg.MetadataTimeout)
	defer cancel()

	args := []string{"--no-config", "-j", "--skip-download", "--no-playlist", "--no-warnings", "--no-progress", "--no-update", ref.URL}
	out, err := c.extract(ctx, "metadata", args)
	if err != nil {
		return VideoInfo{}, err
	}
	info := out.info()
	if info.VideoID == "" {
		info.VideoID = ref.VideoID
	}
	if info.WebpageURL == "" {
		info.WebpageURL = ref.CanonicalURL
	}
	c.logger.Info("video metadata fetched",
		logging.String("video_id", info.VideoID),
		logging.String("title", info.Title),
		logging.Float64("duration_seconds", info.Duration),
	)
	return info, nil
}

// Download materialises the best audio track for url into a fresh run
// directory. On failure nothing is left behind in storage.
func (c *Client) Download(ctx context.Context, url string) (_ *Artifact, err error) {
	ref, err := ParseReference(url)
	if err != nil {
		return nil, err
	}
	if err := c.checkFreeSpace(); err != nil {
		return nil, err
	}

	dir, err := c.storage.NewRunDir(ref.VideoID)
	if err != nil {
		return nil, services.Wrap(services.ErrRetrieval, "download", "allocate run dir", "", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if _, rmErr := c.storage.Remove(dir); rmErr != nil {
			logging.WarnWithContext(c.logger, "failed to remove run directory after download failure", "download_cleanup_failed",
				logging.String("path", dir),
				logging.Error(rmErr),
				logging.String(logging.FieldImpact, "partial download left on disk until the stale sweep"),
			)
		}
	}()

	ctx, cancel := withTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	args := []string{"--no-config", "--no-simulate", "-j"}
	if c.cfg.Format != "" {
		args = append(args, "-f", c.cfg.Format)
	}
	args = append(args,
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"--no-update",
		"--no-mtime",
		ref.URL,
	)
	out, err := c.extract(ctx, "download", args)
	if err != nil {
		return nil, err
	}
	if !out.hasAudio() {
		return nil, services.Wrap(services.ErrRetrieval, "download", "", "No audio formats available for this video", nil)
	}

	videoID := out.ID
	if videoID == "" {
		videoID = ref.VideoID
	}
	path, err := c.locateAudio(dir, videoID)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrRetrieval, "download", "stat audio", "", err)
	}
	if err := verifyAudio(path, info.Size()); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	c.logger.Info("audio downloaded",
		logging.String("video_id", videoID),
		logging.String("path", path),
		logging.Int64("size_bytes", info.Size()),
	)
	return &Artifact{VideoID: videoID, Path: path, Dir: dir, Size: info.Size()}, nil
}

func (c *Client) checkFreeSpace() error {
	if c.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := c.storage.FreeBytes()
	if err != nil {
		c.logger.Debug("free space probe failed", logging.Error(err))
		return nil
	}
	if free < c.cfg.MinFreeBytes {
		return services.Wrap(services.ErrRetrieval, "download", "free space",
			fmt.Sprintf("storage has %d MB free, need %d MB", free>>20, c.cfg.MinFreeBytes>>20), nil)
	}
	return nil
}

func (c *Client) extract(ctx context.Context, stage string, args []string) (ytdlpOutput, error) {
	stdout, stderr, err := c.run(ctx, c.cfg.Binary, args...)
	if err != nil {
		return ytdlpOutput{}, classify(ctx, stage, stderr, err)
	}
	line := lastJSONLine(stdout)
	if line == nil {
		return ytdlpOutput{}, services.Wrap(services.ErrRetrieval, stage, "parse yt-dlp output", "no JSON document in output", nil)
	}
	var out ytdlpOutput
	if err := json.Unmarshal(line, &out); err != nil {
		return ytdlpOutput{}, services.Wrap(services.ErrRetrieval, stage, "parse yt-dlp output", "", err)
	}
	return out, nil
}

// locateAudio picks the downloaded audio file in dir and deletes everything
// else yt-dlp left there.
func (c *Client) locateAudio(dir, videoID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", services.Wrap(services.ErrRetrieval, "download", "read run dir", "", err)
	}
	candidates := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if isAudioExt(ext) {
			if _, seen := candidates[ext]; !seen || strings.HasPrefix(entry.Name(), videoID) {
				candidates[ext] = path
			}
			continue
		}
		if err := os.Remove(path); err == nil {
			c.logger.Debug("removed non-audio download leftover", logging.String("path", path))
		}
	}
	for _, ext := range AudioExtensions {
		if path, ok := candidates[ext]; ok {
			return path, nil
		}
	}
	return "", services.Wrap(services.ErrRetrieval, "download", "", missingAudioMessage, nil)
}

func isAudioExt(ext string) bool {
	for _, candidate := range AudioExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// verifyAudio rejects files whose content is clearly not media, such as an
// HTML error page saved under an audio extension.
func verifyAudio(path string, size int64) error {
	if size == 0 {
		return services.Wrap(services.ErrCorruptArtifact, "download", "verify audio", "downloaded file is empty", nil)
	}
	file, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrRetrieval, "download", "open audio", "", err)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return services.Wrap(services.ErrRetrieval, "download", "read audio", "", err)
	}
	contentType := http.DetectContentType(head[:n])
	if strings.HasPrefix(contentType, "text/") {
		return services.Wrap(services.ErrCorruptArtifact, "download", "verify audio",
			fmt.Sprintf("Video download failed: file is %s, not audio. Video may be unavailable, age-restricted, or region-blocked.", contentType), nil)
	}
	return nil
}

func lastJSONLine(stdout []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 && line[0] == '{' {
			return line
		}
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
