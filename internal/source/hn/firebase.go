package hn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hn_insight/internal/domain"
)

const FirebaseID = "firebase"

// Firebase looks items up one by one against the official HN API.
type Firebase struct {
	client      *client
	maxComments int
	logger      *slog.Logger
}

func NewFirebase(cfg Config, logger *slog.Logger) *Firebase {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFirebaseURL
	}
	logger = logger.With("source", FirebaseID)
	return &Firebase{
		client:      newClient(cfg, logger),
		maxComments: cfg.MaxComments,
		logger:      logger,
	}
}

func (f *Firebase) ID() string {
	return FirebaseID
}

func (f *Firebase) Name() string {
	return "Hacker News Firebase API"
}

// TopIDs returns the front-page ranking truncated to limit. Failures are
// logged and yield an empty slice.
func (f *Firebase) TopIDs(ctx context.Context, limit int) []int64 {
	var ids []int64
	url := fmt.Sprintf("%s/v0/topstories.json", f.client.baseURL)
	if err := f.client.getJSON(ctx, url, &ids); err != nil {
		f.logger.Error("failed to fetch top stories", "error", err)
		return []int64{}
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

// FetchItem returns nil for missing, deleted or dead items. The error is
// non-nil only when ctx is done.
func (f *Firebase) FetchItem(ctx context.Context, id int64) (*domain.Item, error) {
	raw, err := f.fetchRaw(ctx, id)
	if err != nil {
		return nil, absent(ctx, f.logger, id, err)
	}
	if raw == nil {
		return nil, nil
	}
	item := raw.toDomain()
	if !item.Valid() {
		return nil, nil
	}
	return item, nil
}

// FetchItemWithComments fetches the story and up to maxComments top-level
// comments concurrently, one request per comment. Items that cannot be
// stored as a story are absent.
func (f *Firebase) FetchItemWithComments(ctx context.Context, id int64) (*domain.StoryWithComments, error) {
	story, err := f.FetchItem(ctx, id)
	if err != nil || story == nil {
		return nil, err
	}
	if !story.Storable() {
		return nil, nil
	}

	kids := story.Kids
	if f.maxComments > 0 && len(kids) > f.maxComments {
		kids = kids[:f.maxComments]
	}

	texts := make([]string, len(kids))
	var wg sync.WaitGroup
	for i, kid := range kids {
		wg.Add(1)
		go func(i int, kid int64) {
			defer wg.Done()
			c, err := f.FetchItem(ctx, kid)
			if err != nil || c == nil {
				return
			}
			texts[i] = c.Text
		}(i, kid)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return newStoryWithComments(*story, texts), nil
}

func (f *Firebase) fetchRaw(ctx context.Context, id int64) (*firebaseItem, error) {
	var raw *firebaseItem
	url := fmt.Sprintf("%s/v0/item/%d.json", f.client.baseURL, id)
	if err := f.client.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *firebaseItem) toDomain() *domain.Item {
	return &domain.Item{
		ID:          r.ID,
		Title:       r.Title,
		URL:         r.URL,
		Author:      r.By,
		PostedAt:    time.Unix(r.Time, 0).UTC(),
		Points:      r.Score,
		NumComments: r.Descendants,
		Kids:        r.Kids,
		Text:        r.Text,
		Type:        r.Type,
		Deleted:     r.Deleted,
		Dead:        r.Dead,
	}
}

func newStoryWithComments(story domain.Item, raw []string) *domain.StoryWithComments {
	comments := make([]string, 0, len(raw))
	for _, r := range raw {
		if c := CleanComment(r); c != "" {
			comments = append(comments, c)
		}
	}
	return &domain.StoryWithComments{
		Story:        story,
		Comments:     comments,
		CommentsDump: FormatCommentDump(comments),
	}
}
