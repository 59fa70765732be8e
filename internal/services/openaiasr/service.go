// Package openaiasr runs speech recognition against an OpenAI-compatible
// audio transcription endpoint.
package openaiasr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	langpkg "tubescribe/internal/language"
	"tubescribe/internal/logging"
	"tubescribe/internal/models"
	"tubescribe/internal/services"
	"tubescribe/internal/transcript"
)

// DefaultModel is the hosted model used for every catalog tier unless
// Config.Model overrides it.
const DefaultModel = "whisper-1"

// Config captures the endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Service provides models backed by the transcription endpoint.
type Service struct {
	cfg    Config
	client *openai.Client
	logger *slog.Logger
}

// NewService constructs the client from cfg.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Service{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logging.NewComponentLogger(logger, "openai-asr"),
	}
}

// Load returns a model bound to the endpoint. The device is irrelevant for
// hosted recognition.
func (s *Service) Load(_ context.Context, name string, _ models.Device) (models.Model, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, errors.New("openai api key not configured")
	}
	return &model{svc: s, name: models.NormalizeName(name)}, nil
}

// Available is always true; weights live on the remote service.
func (s *Service) Available(string) bool {
	return true
}

type model struct {
	svc  *Service
	name string
}

func (m *model) Name() string { return m.name }

func (m *model) Transcribe(ctx context.Context, audioPath string, opts models.Options) (transcript.Result, error) {
	if m.svc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.svc.cfg.Timeout)
		defer cancel()
	}
	req := openai.AudioRequest{
		Model:    m.svc.cfg.Model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
		Language: langpkg.ToISO2(opts.Language),
	}
	start := time.Now()
	resp, err := m.svc.client.CreateTranscription(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Join(err, services.ErrTimeout)
		}
		return transcript.Result{}, services.Wrap(services.ErrRecognition, "recognition", "openai "+m.name, "create transcription", err)
	}
	m.svc.logger.Debug("transcription received",
		logging.String("model", m.svc.cfg.Model),
		logging.Int("segments", len(resp.Segments)),
		logging.Int("words", len(resp.Words)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return convert(resp), nil
}

func convert(resp openai.AudioResponse) transcript.Result {
	result := transcript.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: langpkg.ToISO2(resp.Language),
		Segments: make([]transcript.RawSegment, 0, len(resp.Segments)),
	}
	confidences := make([]float64, len(resp.Segments))
	for i, seg := range resp.Segments {
		result.Segments = append(result.Segments, transcript.RawSegment{
			ID:    i,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
		confidences[i] = transcript.ClampConfidence(math.Exp(seg.AvgLogprob))
	}
	if len(result.Segments) == 0 {
		if len(resp.Words) == 0 {
			return result
		}
		result.Segments = append(result.Segments, transcript.RawSegment{
			Start: resp.Words[0].Start,
			End:   resp.Words[len(resp.Words)-1].End,
			Text:  result.Text,
		})
		confidences = append(confidences, 0)
	}

	// Words arrive as one flat list in time order.
	j := 0
	for _, w := range resp.Words {
		for j+1 < len(result.Segments) && w.Start >= result.Segments[j+1].Start {
			j++
		}
		result.Segments[j].Words = append(result.Segments[j].Words, transcript.Word{
			Text:       w.Word,
			Start:      w.Start,
			End:        w.End,
			Confidence: confidences[j],
		})
	}
	if result.Text == "" {
		result.Text = result.JoinedText()
	}
	return result
}

// String identifies the endpoint in logs.
func (s *Service) String() string {
	base := s.cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return fmt.Sprintf("%s (%s)", base, s.cfg.Model)
}
