package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"hn_insight/internal/domain"
	"hn_insight/internal/summary"
)

const DefaultJobTimeout = 5 * time.Minute

// Jobs triggers the ingestion and retry passes.
type Jobs interface {
	Refresh(ctx context.Context) (*domain.RefreshStats, error)
	Process(ctx context.Context) (*domain.ProcessResult, error)
	Retry(ctx context.Context) (*domain.RetryStats, error)
}

type StoryLister interface {
	ListPage(ctx context.Context, limit, offset int) ([]domain.Story, error)
}

type TitleTranslator interface {
	Title(ctx context.Context, storyID int64, title string) string
}

type Pinger interface {
	Ping(ctx context.Context, cfg summary.Config) (json.RawMessage, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Jobs       Jobs
	Stories    StoryLister
	Titles     TitleTranslator
	Pinger     Pinger
	Logger     *slog.Logger
	MaxWorkers int
	// JobTimeout bounds every job triggered over HTTP.
	JobTimeout time.Duration
}

// Server exposes the story feed, the job triggers and the provider check.
type Server struct {
	jobs       Jobs
	stories    StoryLister
	titles     TitleTranslator
	pinger     Pinger
	logger     *slog.Logger
	maxWorkers int
	jobTimeout time.Duration
	mux        *http.ServeMux
}

func New(cfg Config) *Server {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	s := &Server{
		jobs:       cfg.Jobs,
		stories:    cfg.Stories,
		titles:     cfg.Titles,
		pinger:     cfg.Pinger,
		logger:     cfg.Logger.With("component", "server"),
		maxWorkers: cfg.MaxWorkers,
		jobTimeout: cfg.JobTimeout,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the routes wrapped in request id and request log middleware.
func (s *Server) Handler() http.Handler {
	return WithRequestID(WithRequestLog(s.logger, s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /stories", s.handleStories)
	s.mux.HandleFunc("GET /cron/fetch", s.handleFetch)
	s.mux.HandleFunc("GET /cron/process-news", s.handleProcess)
	s.mux.HandleFunc("GET /cron/retry", s.handleRetry)
	s.mux.HandleFunc("POST /ai/ping", s.handlePing)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
