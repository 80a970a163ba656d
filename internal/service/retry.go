package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hn_insight/internal/domain"
)

// Retry re-runs enrichment for stories that have a comment dump but no
// summary. It makes at most MaxPasses passes with a fixed delay between
// them and stops as soon as no candidates remain. Retry candidates overlap
// with Process candidates, so Retry also holds the process lock.
func (s *StoryService) Retry(ctx context.Context) (*domain.RetryStats, error) {
	startTime := time.Now()
	stats := &domain.RetryStats{RunID: uuid.NewString()}
	logger := s.logger.With("job", JobRetrySummaries, "run_id", stats.RunID)

	err := s.withLock(ctx, JobRetrySummaries, logger, func() error {
		return s.withLock(ctx, JobProcessNews, logger, func() error {
			return s.retryPasses(ctx, logger, stats)
		})
	})
	if err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	logger.Info("retry completed",
		"passes", stats.Passes,
		"attempted", stats.Attempted,
		"recovered", stats.Recovered,
		"remaining", stats.Remaining,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *StoryService) retryPasses(ctx context.Context, logger *slog.Logger, stats *domain.RetryStats) error {
	for {
		candidates, err := s.stories.ListRetryCandidates(ctx)
		if err != nil {
			return fmt.Errorf("list retry candidates: %w", err)
		}
		stats.Remaining = len(candidates)

		if len(candidates) == 0 || stats.Passes >= s.opts.Retry.MaxPasses {
			return nil
		}

		if stats.Passes > 0 && s.opts.Retry.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.opts.Retry.Delay):
			}
		}

		stats.Passes++
		logger.Info("starting retry pass", "pass", stats.Passes, "candidates", len(candidates))

		for _, batch := range batches(candidates, s.opts.Ingest.BatchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}

			results := make([]domain.ItemResult, len(batch))
			var g errgroup.Group
			for i := range batch {
				g.Go(func() error {
					results[i] = s.retryStory(ctx, logger, &batch[i])
					return nil
				})
			}
			_ = g.Wait()

			stats.Attempted += len(results)
			stats.Recovered += countStatus(results, domain.ItemStatusSuccess)
		}
	}
}

// retryStory refreshes a missing self text before enriching, since Ask HN
// bodies may not have been available on the first fetch.
func (s *StoryService) retryStory(ctx context.Context, logger *slog.Logger, story *domain.Story) domain.ItemResult {
	if deref(story.Text) == "" {
		fresh, err := s.source.FetchItem(ctx, story.ID)
		if err == nil && fresh != nil && fresh.Text != "" {
			if err := s.stories.SetText(ctx, story.ID, fresh.Text); err != nil {
				logger.Warn("failed to store self text", "story_id", story.ID, "error", err)
			}
			story.Text = &fresh.Text
		}
	}

	return s.enrich(ctx, logger, story)
}
