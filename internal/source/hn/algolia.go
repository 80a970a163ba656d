package hn

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"hn_insight/internal/domain"
)

const AlgoliaID = "algolia"

// Algolia reads the front page from the search endpoint and whole comment
// trees from the items endpoint, so a story costs one request regardless of
// how many comments it has.
type Algolia struct {
	client      *client
	maxComments int
	logger      *slog.Logger
}

func NewAlgolia(cfg Config, logger *slog.Logger) *Algolia {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAlgoliaURL
	}
	logger = logger.With("source", AlgoliaID)
	return &Algolia{
		client:      newClient(cfg, logger),
		maxComments: cfg.MaxComments,
		logger:      logger,
	}
}

func (a *Algolia) ID() string {
	return AlgoliaID
}

func (a *Algolia) Name() string {
	return "Hacker News Algolia API"
}

func (a *Algolia) TopIDs(ctx context.Context, limit int) []int64 {
	if limit <= 0 {
		limit = 30
	}
	url := fmt.Sprintf("%s/api/v1/search?tags=front_page&hitsPerPage=%d", a.client.baseURL, limit)

	var resp algoliaSearchResponse
	if err := a.client.getJSON(ctx, url, &resp); err != nil {
		a.logger.Error("failed to fetch front page", "error", err)
		return []int64{}
	}

	ids := make([]int64, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		id, err := strconv.ParseInt(hit.ObjectID, 10, 64)
		if err != nil {
			a.logger.Warn("skipping hit with invalid object id", "object_id", hit.ObjectID)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func (a *Algolia) FetchItem(ctx context.Context, id int64) (*domain.Item, error) {
	raw, err := a.fetchRaw(ctx, id)
	if err != nil {
		return nil, absent(ctx, a.logger, id, err)
	}
	return raw.toDomain(), nil
}

func (a *Algolia) FetchItemWithComments(ctx context.Context, id int64) (*domain.StoryWithComments, error) {
	raw, err := a.fetchRaw(ctx, id)
	if err != nil {
		return nil, absent(ctx, a.logger, id, err)
	}
	story := raw.toDomain()
	if !story.Storable() {
		return nil, nil
	}

	children := raw.Children
	if a.maxComments > 0 && len(children) > a.maxComments {
		children = children[:a.maxComments]
	}
	texts := make([]string, 0, len(children))
	for _, c := range children {
		texts = append(texts, c.Text)
	}

	return newStoryWithComments(*story, texts), nil
}

func (a *Algolia) fetchRaw(ctx context.Context, id int64) (*algoliaItem, error) {
	var raw algoliaItem
	url := fmt.Sprintf("%s/api/v1/items/%d", a.client.baseURL, id)
	if err := a.client.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	if raw.ID == 0 {
		return nil, errNotFound
	}
	return &raw, nil
}

// Algolia drops deleted and dead items from its index, so anything it
// returns is valid.
func (r *algoliaItem) toDomain() *domain.Item {
	kids := make([]int64, 0, len(r.Children))
	for _, c := range r.Children {
		kids = append(kids, c.ID)
	}

	points := 0
	if r.Points != nil {
		points = *r.Points
	}

	itemType := r.Type
	if itemType == "" {
		itemType = "story"
	}

	return &domain.Item{
		ID:          r.ID,
		Title:       r.Title,
		URL:         r.URL,
		Author:      r.Author,
		PostedAt:    time.Unix(r.CreatedAt, 0).UTC(),
		Points:      points,
		NumComments: len(r.Children),
		Kids:        kids,
		Text:        r.Text,
		Type:        itemType,
	}
}
