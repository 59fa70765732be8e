package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "tubescribe/internal/language"
	"tubescribe/internal/logging"
	"tubescribe/internal/models"
	"tubescribe/internal/services"
	"tubescribe/internal/transcript"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX-backed models.
type Service struct {
	cfg           Config
	logger        *slog.Logger
	commandRunner CommandRunner
	lookPath      func(string) (string, error)
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = FFmpegCommand
	}
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	return &Service{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "whisperx"),
		lookPath: exec.LookPath,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
	s.lookPath = func(name string) (string, error) { return name, nil }
}

// Load prepares the named model. WhisperX loads weights per invocation, so
// this only verifies the toolchain is reachable.
func (s *Service) Load(_ context.Context, name string, device models.Device) (models.Model, error) {
	weights, ok := weightNames[models.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("whisperx: no weights for model %q", name)
	}
	if _, err := s.lookPath(UVXCommand); err != nil {
		return nil, fmt.Errorf("whisperx: %s not found in PATH: %w", UVXCommand, err)
	}
	if _, err := s.lookPath(s.cfg.FFmpegBinary); err != nil {
		return nil, fmt.Errorf("whisperx: %s not found in PATH: %w", s.cfg.FFmpegBinary, err)
	}
	return &model{svc: s, name: models.NormalizeName(name), weights: weights, device: device}, nil
}

// Available reports whether the model's weights are cached in ModelDir.
func (s *Service) Available(name string) bool {
	weights, ok := weightNames[models.NormalizeName(name)]
	if !ok || s.cfg.ModelDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(s.cfg.ModelDir, "models--Systran--faster-whisper-"+weights))
	return err == nil && info.IsDir()
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLine(string(output)))
	}
	return nil
}

type model struct {
	svc     *Service
	name    string
	weights string
	device  models.Device
}

func (m *model) Name() string { return m.name }

// Transcribe normalizes the audio, runs WhisperX, and parses its JSON output.
// Intermediate files live in a scratch directory next to the audio and are
// removed before returning.
func (m *model) Transcribe(ctx context.Context, audioPath string, opts models.Options) (transcript.Result, error) {
	if strings.TrimSpace(audioPath) == "" {
		return transcript.Result{}, services.Wrap(services.ErrRecognition, "recognition", "whisperx", "audio path required", nil)
	}
	workDir, err := os.MkdirTemp(filepath.Dir(audioPath), ".whisperx-")
	if err != nil {
		return transcript.Result{}, services.Wrap(services.ErrRecognition, "recognition", "whisperx", "create work dir", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logging.WarnWithContext(m.svc.logger, "whisperx scratch cleanup failed", "whisperx_cleanup_failed",
				logging.String("path", workDir),
				logging.Error(err),
			)
		}
	}()

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := m.svc.extract(ctx, audioPath, wavPath); err != nil {
		return transcript.Result{}, m.failure(ctx, "normalize audio", err)
	}

	args := m.buildArgs(wavPath, workDir, opts.Language)
	m.svc.logger.Debug("running whisperx",
		logging.String("model", m.name),
		logging.String("device", string(m.device)),
	)
	if err := m.svc.run(ctx, UVXCommand, args...); err != nil {
		return transcript.Result{}, m.failure(ctx, "run", err)
	}

	result, err := LoadResult(filepath.Join(workDir, "audio.json"))
	if err != nil {
		return transcript.Result{}, m.failure(ctx, "parse output", err)
	}
	return result, nil
}

func (m *model) failure(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(err, ctxErr)
	}
	return services.Wrap(services.ErrRecognition, "recognition", "whisperx "+m.name, op, err)
}

func (s *Service) extract(ctx context.Context, source, dest string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.cfg.FFmpegBinary, buildFFmpegExtractArgs(source, dest)...)
	}
	return ExtractAudio(ctx, s.cfg.FFmpegBinary, source, dest)
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (m *model) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 40)
	cuda := m.device == models.DeviceCUDA

	if cuda {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", m.weights,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--print_progress", "False",
	)
	if dir := m.svc.cfg.ModelDir; dir != "" {
		args = append(args, "--model_dir", dir)
	}

	vadMethod := m.svc.cfg.VADMethod
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && m.svc.cfg.HFToken != "" {
		args = append(args, "--hf_token", m.svc.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if cuda {
		args = append(args, "--device", string(models.DeviceCUDA), "--compute_type", CUDAComputeType)
	} else {
		args = append(args, "--device", string(models.DeviceCPU), "--compute_type", CPUComputeType)
	}
	return args
}

// Word represents a single word with timing from WhisperX output. Alignment
// can leave numerals and symbols without timings.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Score *float64 `json:"score"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type payload struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// LoadResult reads a WhisperX JSON file into a recognition result.
func LoadResult(jsonPath string) (transcript.Result, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return transcript.Result{}, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return transcript.Result{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	return convert(p), nil
}

func convert(p payload) transcript.Result {
	result := transcript.Result{
		Language: langpkg.ToISO2(p.Language),
		Segments: make([]transcript.RawSegment, 0, len(p.Segments)),
	}
	for i, seg := range p.Segments {
		raw := transcript.RawSegment{
			ID:    i,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
			Words: make([]transcript.Word, 0, len(seg.Words)),
		}
		cursor := seg.Start
		for _, w := range seg.Words {
			start := cursor
			if w.Start != nil {
				start = *w.Start
			}
			end := start
			if w.End != nil {
				end = *w.End
			}
			confidence := 0.0
			if w.Score != nil {
				confidence = transcript.ClampConfidence(*w.Score)
			}
			raw.Words = append(raw.Words, transcript.Word{
				Text:       w.Word,
				Start:      start,
				End:        end,
				Confidence: confidence,
			})
			cursor = end
		}
		result.Segments = append(result.Segments, raw)
	}
	result.Text = result.JoinedText()
	return result
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
