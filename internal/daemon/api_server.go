package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tubescribe/internal/api"
	"tubescribe/internal/logging"
	"tubescribe/internal/pipeline"
	"tubescribe/internal/services"
)

const maxBodyBytes = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	svc    *api.Service

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, svc *api.Service, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logger,
		svc:    svc,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Transcription of long videos can take many minutes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", authMiddleware(token, s.handleVersion))
	mux.HandleFunc("GET /models", authMiddleware(token, s.handleModels))
	mux.HandleFunc("POST /video-info", authMiddleware(token, s.handleVideoInfo))
	mux.HandleFunc("POST /download-audio", authMiddleware(token, s.handleDownloadAudio))
	mux.HandleFunc("POST /transcribe", authMiddleware(token, s.handleTranscribe))
	mux.HandleFunc("DELETE /cleanup", authMiddleware(token, s.handleCleanup))
	mux.HandleFunc("DELETE /cleanup/file", authMiddleware(token, s.handleCleanupFile))
	mux.HandleFunc("GET /runs", authMiddleware(token, s.handleRuns))
	mux.HandleFunc("GET /runs/{id}", authMiddleware(token, s.handleRun))
	return s.withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequestID tags every request with an id that is echoed in the
// X-Request-ID header and attached to log lines through the context.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		logging.WithContext(ctx, s.log()).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Health())
}

func (s *apiServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Version())
}

func (s *apiServer) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Models())
}

func (s *apiServer) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req api.URLRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.VideoInfo(r.Context(), req.URL)
	s.respond(w, r, resp, err)
}

func (s *apiServer) handleDownloadAudio(w http.ResponseWriter, r *http.Request) {
	var req api.URLRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.DownloadAudio(r.Context(), req.URL)
	s.respond(w, r, resp, err)
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req api.TranscribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.Transcribe(r.Context(), req)
	s.respond(w, r, resp, err)
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.CleanupAll()
	s.respond(w, r, resp, err)
}

func (s *apiServer) handleCleanupFile(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.CleanupFile(r.URL.Query().Get("path"))
	s.respond(w, r, resp, err)
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			err := services.Wrap(services.ErrValidation, "api", "runs", fmt.Sprintf("invalid limit %q", raw), nil)
			s.respond(w, r, api.RunsResponse{Envelope: api.Failure(err)}, err)
			return
		}
		limit = parsed
	}
	var states []pipeline.State
	for _, value := range query["state"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			states = append(states, pipeline.State(trimmed))
		}
	}
	resp, err := s.svc.Runs(r.Context(), limit, states)
	s.respond(w, r, resp, err)
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Run(r.Context(), r.PathValue("id"))
	s.respond(w, r, resp, err)
}

// decode reads a JSON body into dst. Malformed bodies are answered with a
// validation envelope and decode returns false.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		wrapped := services.Wrap(services.ErrValidation, "api", "decode", "invalid request body", err)
		s.writeJSON(w, http.StatusBadRequest, api.Failure(wrapped))
		return false
	}
	return true
}

func (s *apiServer) respond(w http.ResponseWriter, r *http.Request, payload any, err error) {
	if err == nil {
		s.writeJSON(w, http.StatusOK, payload)
		return
	}
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.log())
	attrs := []logging.Attr{
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
		logging.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "api_request_failed", attrs...)
	} else {
		logging.WarnWithContext(logger, "request rejected", "api_request_rejected", attrs...)
	}
	s.writeJSON(w, status, payload)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
