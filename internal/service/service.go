package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hn_insight/internal/config"
	"hn_insight/internal/domain"
)

const (
	JobFetchStories   = "fetch_stories"
	JobProcessNews    = "process_news"
	JobRetrySummaries = "retry_summaries"

	releaseTimeout = 5 * time.Second
)

// ErrJobLocked means another run of the same job holds the lock.
var ErrJobLocked = errors.New("job already running")

type Options struct {
	Ingest  config.IngestConfig
	Retry   config.RetryJobConfig
	LockTTL time.Duration
}

// StoryService runs the ingestion and retry jobs. Every job is gated by a
// lock so overlapping triggers never race on the same stories.
type StoryService struct {
	source    Source
	stories   StoryStore
	summaries SummaryStore
	locker    Locker
	scraper   Scraper
	generator Generator
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	opts      Options
}

func NewStoryService(
	source Source,
	stories StoryStore,
	summaries SummaryStore,
	locker Locker,
	scraper Scraper,
	generator Generator,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	opts Options,
) *StoryService {
	if opts.Ingest.BatchSize <= 0 {
		opts.Ingest.BatchSize = 5
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 6 * time.Minute
	}
	return &StoryService{
		source:    source,
		stories:   stories,
		summaries: summaries,
		locker:    locker,
		scraper:   scraper,
		generator: generator,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("source", source.ID()),
		opts:      opts,
	}
}

// withLock runs fn while holding jobID. The lock is released even when fn
// fails or ctx is cancelled.
func (s *StoryService) withLock(ctx context.Context, jobID string, logger *slog.Logger, fn func() error) error {
	token, ok, err := s.locker.Acquire(ctx, jobID, s.opts.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", jobID, ErrJobLocked)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := s.locker.Release(releaseCtx, jobID, token); err != nil {
			logger.Error("failed to release lock", "error", err)
		}
	}()

	return fn()
}

// batches splits ids into consecutive chunks of at most size.
func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// toStory maps a fetched item onto a storable story row.
func toStory(sw *domain.StoryWithComments) *domain.Story {
	item := sw.Story

	kids := item.Kids
	if kids == nil {
		kids = []int64{}
	}
	encodedKids, _ := json.Marshal(kids)

	title := item.Title
	if title == "" {
		title = "Untitled"
	}
	postedAt := item.PostedAt
	if postedAt.IsZero() {
		postedAt = time.Now().UTC()
	}
	itemType := item.Type
	if itemType == "" {
		itemType = "story"
	}
	dump := sw.CommentsDump

	return &domain.Story{
		ID:           item.ID,
		Title:        title,
		URL:          optional(item.URL),
		Author:       optional(item.Author),
		PostedAt:     postedAt,
		Points:       item.Points,
		NumComments:  item.NumComments,
		Kids:         string(encodedKids),
		CommentsDump: &dump,
		Text:         optional(item.Text),
		Domain:       domain.DomainFromURL(item.URL),
		Type:         itemType,
		Status:       domain.StoryStatusPending,
	}
}

// toItem is the inverse of toStory for the fields the generator reads.
func toItem(story *domain.Story) domain.Item {
	return domain.Item{
		ID:          story.ID,
		Title:       story.Title,
		URL:         deref(story.URL),
		Author:      deref(story.Author),
		PostedAt:    story.PostedAt,
		Points:      story.Points,
		NumComments: story.NumComments,
		Text:        deref(story.Text),
		Type:        story.Type,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
