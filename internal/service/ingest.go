package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hn_insight/internal/domain"
	"hn_insight/internal/source/hn"
)

// Refresh stores the current front page, updating metadata of stories we
// already know without touching their summaries, then applies retention.
func (s *StoryService) Refresh(ctx context.Context) (*domain.RefreshStats, error) {
	startTime := time.Now()
	stats := &domain.RefreshStats{RunID: uuid.NewString()}
	logger := s.logger.With("job", JobFetchStories, "run_id", stats.RunID)

	err := s.withLock(ctx, JobFetchStories, logger, func() error {
		logger.Info("starting refresh",
			"source_name", s.source.Name(),
			"limit", s.opts.Ingest.FetchLimit,
		)

		ids := dedupe(s.source.TopIDs(ctx, s.opts.Ingest.FetchLimit))
		logger.Info("fetched top stories", "count", len(ids))

		var mu sync.Mutex
		for _, batch := range batches(ids, s.opts.Ingest.BatchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}

			var g errgroup.Group
			for _, id := range batch {
				g.Go(func() error {
					isNew, ok := s.refreshStory(ctx, logger, id)
					if !ok {
						return nil
					}
					mu.Lock()
					defer mu.Unlock()
					stats.Processed++
					if isNew {
						stats.New++
					} else {
						stats.Updated++
					}
					return nil
				})
			}
			_ = g.Wait()
		}

		deleted, err := s.stories.EnforceRetention(ctx, s.opts.Ingest.Retention)
		if err != nil {
			return fmt.Errorf("enforce retention: %w", err)
		}
		stats.Deleted = deleted

		total, err := s.stories.Count(ctx)
		if err != nil {
			return fmt.Errorf("count stories: %w", err)
		}
		stats.Total = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.Success = true
	stats.Duration = time.Since(startTime)

	logger.Info("refresh completed",
		"processed", stats.Processed,
		"new", stats.New,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"total", stats.Total,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *StoryService) refreshStory(ctx context.Context, logger *slog.Logger, id int64) (isNew, ok bool) {
	sw, err := s.source.FetchItemWithComments(ctx, id)
	if err != nil || sw == nil {
		return false, false
	}

	isNew, err = s.stories.Upsert(ctx, toStory(sw))
	if err != nil {
		logger.Error("failed to save story", "story_id", id, "error", err)
		return false, false
	}
	return isNew, true
}

// Process summarizes front-page stories that are not yet settled. Items are
// handled in fixed-size batches: sequential across batches, concurrent
// within one. Per-item failures are recorded in the result, never returned.
func (s *StoryService) Process(ctx context.Context) (*domain.ProcessResult, error) {
	startTime := time.Now()
	result := &domain.ProcessResult{RunID: uuid.NewString(), Processed: []domain.ItemResult{}}
	logger := s.logger.With("job", JobProcessNews, "run_id", result.RunID)

	err := s.withLock(ctx, JobProcessNews, logger, func() error {
		ids := dedupe(s.source.TopIDs(ctx, s.opts.Ingest.ProcessLimit))

		settled, err := s.stories.ListSettledIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("list settled stories: %w", err)
		}

		candidates := make([]int64, 0, len(ids))
		for _, id := range ids {
			if !settled[id] {
				candidates = append(candidates, id)
			}
		}
		result.Candidates = len(candidates)

		logger.Info("starting process",
			"source_name", s.source.Name(),
			"top", len(ids),
			"candidates", len(candidates),
		)

		for _, batch := range batches(candidates, s.opts.Ingest.BatchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}

			results := make([]domain.ItemResult, len(batch))
			var g errgroup.Group
			for i, id := range batch {
				g.Go(func() error {
					results[i] = s.processStory(ctx, logger, id)
					return nil
				})
			}
			_ = g.Wait()
			result.Processed = append(result.Processed, results...)
		}

		deleted, err := s.stories.EnforceRetention(ctx, s.opts.Ingest.Retention)
		if err != nil {
			return fmt.Errorf("enforce retention: %w", err)
		}
		result.Deleted = deleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)
	logger.Info("process completed",
		"candidates", result.Candidates,
		"succeeded", countStatus(result.Processed, domain.ItemStatusSuccess),
		"deleted", result.Deleted,
		"duration", result.Duration,
	)

	return result, nil
}

func (s *StoryService) processStory(ctx context.Context, logger *slog.Logger, id int64) domain.ItemResult {
	sw, err := s.source.FetchItemWithComments(ctx, id)
	if err != nil {
		return domain.ItemResult{ID: id, Status: domain.ItemStatusError, Details: err.Error()}
	}
	if sw == nil {
		return domain.ItemResult{ID: id, Status: domain.ItemStatusInvalid}
	}

	// the story row is written before enrichment so metadata survives
	// any later failure
	story := toStory(sw)
	if _, err := s.stories.Upsert(ctx, story); err != nil {
		logger.Error("failed to save story", "story_id", id, "error", err)
		return domain.ItemResult{ID: id, Status: domain.ItemStatusError, Details: err.Error()}
	}

	return s.enrich(ctx, logger, story)
}

// enrich scrapes, generates and stores the summary for a stored story.
// Generation is attempted whenever any content is available; a story with
// no article text, no self text and no comments is marked skipped for good.
func (s *StoryService) enrich(ctx context.Context, logger *slog.Logger, story *domain.Story) domain.ItemResult {
	logger = logger.With("story_id", story.ID)
	res := domain.ItemResult{ID: story.ID}

	var content string
	if url := deref(story.URL); url != "" {
		content = s.scraper.Scrape(ctx, url)
		res.Scrape = domain.ScrapeStatusOK
		if content == "" {
			res.Scrape = domain.ScrapeStatusEmpty
		}
	} else {
		res.Scrape = domain.ScrapeStatusNoURL
	}

	selfText := hn.CleanComment(deref(story.Text))
	dump := deref(story.CommentsDump)

	if content == "" && selfText == "" && dump == "" {
		logger.Info("no content available, skipping")
		if err := s.stories.UpdateStatus(ctx, story.ID, domain.StoryStatusSkipped); err != nil {
			res.Status = domain.ItemStatusError
			res.Details = err.Error()
			return res
		}
		res.Status = domain.ItemStatusNoContent
		return res
	}

	if content == "" {
		content = selfText
	}

	generated, err := s.generator.Generate(ctx, toItem(story), dump, content, nil)
	if err != nil {
		logger.Warn("summary generation failed", "error", err)
		if err := s.stories.UpdateStatus(ctx, story.ID, domain.StoryStatusFailed); err != nil {
			logger.Error("failed to mark story failed", "error", err)
		}
		res.Status = domain.ItemStatusGenerationFailed
		res.Details = err.Error()
		return res
	}
	generated.StoryID = story.ID

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.summaries.Upsert(txCtx, generated); err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
		if err := s.stories.UpdateStatus(txCtx, story.ID, domain.StoryStatusCompleted); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to store summary", "error", err)
		res.Status = domain.ItemStatusError
		res.Details = err.Error()
		return res
	}
	story.Status = domain.StoryStatusCompleted

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, story, generated); err != nil {
			logger.Warn("failed to publish summary event", "error", err)
		}
	}

	logger.Info("story summarized", "scrape", res.Scrape)
	res.Status = domain.ItemStatusSuccess
	return res
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func countStatus(results []domain.ItemResult, status domain.ItemStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
