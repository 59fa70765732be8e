// Package daemonrun hosts the serve runtime: logger setup, component
// wiring, and the signal-driven server lifetime.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tubescribe/internal/app"
	"tubescribe/internal/config"
	"tubescribe/internal/daemon"
	"tubescribe/internal/logging"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Bind overrides paths.api_bind when set.
	Bind string
}

// Run starts the tubescribe server and blocks until cmdCtx is cancelled or
// the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if bind := strings.TrimSpace(opts.Bind); bind != "" {
		cfg.Paths.APIBind = bind
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outputs := []string{"stdout"}
	errorOutputs := []string{"stderr"}
	var logPath string
	if cfg.Paths.LogDir != "" {
		stamp := time.Now().UTC().Format("20060102T150405.000Z")
		logPath = filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("tubescribe-%s.log", stamp))
		outputs = append(outputs, logPath)
		errorOutputs = append(errorOutputs, logPath)
	}
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errorOutputs,
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update tubescribe.log link: %v\n", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "tubescribe.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	components, err := app.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("wire components: %w", err)
	}
	if components.Store == nil {
		_ = components.Close()
		return fmt.Errorf("run store %s could not be opened", cfg.RunStorePath())
	}

	d, err := daemon.New(cfg, daemon.Components{
		Service:  components.Service,
		Store:    components.Store,
		Storage:  components.Storage,
		Janitor:  components.Janitor,
		Registry: components.Registry,
	}, logger)
	if err != nil {
		_ = components.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "server start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and that no other tubescribe server is running"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("tubescribe server shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "tubescribe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ytdlp := cfg.Retrieval.YtDlpBinary
	ffmpeg := cfg.FFmpegBinary()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Recognition.Backend),
		logging.Bool("ytdlp_available", binaryAvailable(ytdlp)),
		logging.String("ytdlp_binary", ytdlp),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.String("default_model", cfg.Recognition.DefaultModel),
		logging.Int("max_resident_models", cfg.Recognition.MaxResidentModels),
	}
	switch cfg.Recognition.Backend {
	case config.BackendOpenAI:
		attrs = append(attrs, logging.Bool("openai_key_present", strings.TrimSpace(cfg.OpenAI.APIKey) != ""))
	default:
		attrs = append(attrs,
			logging.Bool("uvx_available", binaryAvailable("uvx")),
			logging.String("whisperx_vad_method", strings.TrimSpace(cfg.Recognition.VADMethod)),
			logging.Bool("hf_token_present", strings.TrimSpace(cfg.Recognition.HFToken) != ""),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
