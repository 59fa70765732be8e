package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StorageDir string `toml:"storage_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Retrieval contains configuration for metadata lookup and audio download via yt-dlp.
type Retrieval struct {
	YtDlpBinary     string `toml:"ytdlp_binary"`
	Format          string `toml:"format"`
	MetadataTimeout int    `toml:"metadata_timeout"`
	DownloadTimeout int    `toml:"download_timeout"`
	MinFreeMB       int    `toml:"min_free_mb"`
}

// Recognition contains configuration for the speech recognition backend.
type Recognition struct {
	Backend           string `toml:"backend"`
	DefaultModel      string `toml:"default_model"`
	Device            string `toml:"device"`
	Language          string `toml:"language"`
	MaxResidentModels int    `toml:"max_resident_models"`
	ModelCacheDir     string `toml:"model_cache_dir"`
	VADMethod         string `toml:"vad_method"`
	HFToken           string `toml:"hf_token"`
}

// OpenAI contains connection settings for the hosted transcription backend.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Segmentation contains the fixed window width defaults and bounds, in seconds.
type Segmentation struct {
	DefaultWindowSeconds float64 `toml:"default_window_seconds"`
	MinWindowSeconds     float64 `toml:"min_window_seconds"`
	MaxWindowSeconds     float64 `toml:"max_window_seconds"`
}

// Cleanup contains configuration for artifact removal.
type Cleanup struct {
	DelaySeconds    int `toml:"delay_seconds"`
	Workers         int `toml:"workers"`
	StaleAfterHours int `toml:"stale_after_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tubescribe.
//
// Configuration sections by subsystem:
//   - Paths: audio storage, state and log directories, API bind address
//   - Retrieval: yt-dlp binary, format selector, timeouts, free-space guard
//   - Recognition: backend, default model, device, resident model bound
//   - OpenAI: hosted transcription credentials
//   - Segmentation: fixed window width default and bounds
//   - Cleanup: artifact removal delay, workers, stale sweep age
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Retrieval    Retrieval    `toml:"retrieval"`
	Recognition  Recognition  `toml:"recognition"`
	OpenAI       OpenAI       `toml:"openai"`
	Segmentation Segmentation `toml:"segmentation"`
	Cleanup      Cleanup      `toml:"cleanup"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigRelativePath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigRelativePath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tubescribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StorageDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Recognition.Backend == BackendWhisperX {
		dirs = append(dirs, c.Recognition.ModelCacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RunStorePath returns the location of the run history database.
func (c *Config) RunStorePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LockPath returns the location of the single-instance server lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tubescribe.lock")
}

// MetadataTimeout returns the yt-dlp metadata timeout as a duration.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Retrieval.MetadataTimeout) * time.Second
}

// DownloadTimeout returns the yt-dlp download timeout as a duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Retrieval.DownloadTimeout) * time.Second
}

// CleanupDelay returns how long completed runs keep their artifacts before removal.
func (c *Config) CleanupDelay() time.Duration {
	return time.Duration(c.Cleanup.DelaySeconds) * time.Second
}

// StaleAfter returns the age at which leftover run directories are swept.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Cleanup.StaleAfterHours) * time.Hour
}

// FFmpegBinary returns the ffmpeg executable name used by the recognition backends.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	if redacted.Paths.APIToken != "" {
		redacted.Paths.APIToken = "<redacted>"
	}
	if redacted.OpenAI.APIKey != "" {
		redacted.OpenAI.APIKey = "<redacted>"
	}
	if redacted.Recognition.HFToken != "" {
		redacted.Recognition.HFToken = "<redacted>"
	}
	data, err := toml.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
