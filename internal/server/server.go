// Package server exposes interview sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/logger"
)

const (
	DefaultPort = 8080

	maxUploadBytes  = 10 << 20
	shutdownTimeout = 10 * time.Second
)

// Interviews is the session service the handlers drive.
type Interviews interface {
	CreateSession(ctx context.Context, posting ai.Posting) (*interview.Session, interview.Step, error)
	SubmitAnswer(ctx context.Context, id, questionID, answer string) (interview.Step, error)
	SimulateAnswer(ctx context.Context, id string) (string, interview.Step, error)
	Finish(ctx context.Context, id string) (*interview.FinishResult, error)
	Report(ctx context.Context, id string) (string, error)
	Session(ctx context.Context, id string) (*interview.Session, error)
}

type Config struct {
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base-url"`
}

type Server struct {
	interviews Interviews
	port       int
	baseURL    string
	logger     *zap.Logger
}

func New(interviews Interviews, cfg Config, log *zap.Logger) *Server {
	port := cfg.Port
	if port <= 0 {
		port = DefaultPort
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", port)
	}

	return &Server{
		interviews: interviews,
		port:       port,
		baseURL:    baseURL,
		logger:     logger.OrNop(log).Named("http"),
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api/v1/interviews", func(r chi.Router) {
		r.Post("/", s.createInterview)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/answers", s.submitAnswer)
			r.Post("/simulate", s.simulateAnswer)
			r.Post("/finish", s.finish)
			r.Get("/report", s.report)
		})
	})

	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.Int("port", s.port), zap.String("base_url", s.baseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return <-errCh
}

func (s *Server) reportURL(id string) string {
	return s.baseURL + "/api/v1/interviews/" + id + "/report"
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if id := chi.URLParam(r, "id"); id != "" {
			fields = append(fields, zap.String(logger.FieldSession, id))
		}

		if ww.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request served", fields...)
			return
		}
		s.logger.Debug("request served", fields...)
	})
}
