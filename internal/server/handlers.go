package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"hn_insight/internal/domain"
	"hn_insight/internal/service"
	"hn_insight/internal/summary"
)

const (
	defaultPage  = 1
	defaultLimit = 30
	maxLimit     = 100
)

// storyView is a stored story plus its translated title.
type storyView struct {
	domain.Story
	TitleZh string `json:"titleZh"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", defaultPage)
	if page < 1 {
		page = defaultPage
	}
	limit := queryInt(r, "limit", defaultLimit)
	limit = max(1, min(limit, maxLimit))

	stories, err := s.stories.ListPage(r.Context(), limit, (page-1)*limit)
	if err != nil {
		s.logger.Error("failed to list stories", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "failed to fetch stories")
		return
	}

	views := make([]storyView, len(stories))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.maxWorkers)
	for i := range stories {
		views[i].Story = stories[i]
		g.Go(func() error {
			views[i].TitleZh = s.titles.Title(ctx, stories[i].ID, stories[i].Title)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.jobTimeout)
	defer cancel()

	stats, err := s.jobs.Refresh(ctx)
	if err != nil {
		s.writeJobError(w, r, service.JobFetchStories, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.jobTimeout)
	defer cancel()

	result, err := s.jobs.Process(ctx)
	if err != nil {
		s.writeJobError(w, r, service.JobProcessNews, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.jobTimeout)
	defer cancel()

	stats, err := s.jobs.Retry(ctx)
	if err != nil {
		s.writeJobError(w, r, service.JobRetrySummaries, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, job string, err error) {
	if errors.Is(err, service.ErrJobLocked) {
		writeError(w, http.StatusTooManyRequests, "job already running")
		return
	}
	s.logger.Error("job failed", "job", job, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req summary.Config
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	raw, err := s.pinger.Ping(r.Context(), req)
	if err != nil {
		var providerErr *summary.ProviderError
		switch {
		case errors.Is(err, summary.ErrNoAPIKey):
			writeError(w, http.StatusBadRequest, "api key is required")
		case errors.Is(err, summary.ErrInvalidAPIKey):
			writeError(w, http.StatusBadRequest, "api key contains invalid characters")
		case errors.Is(err, summary.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &providerErr):
			writeJSON(w, providerErr.StatusCode, map[string]any{
				"error":   "provider rejected the request",
				"details": providerErr.Body,
			})
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    raw,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
