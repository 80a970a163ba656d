package translate

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 512

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type cachedTitle struct {
	source     string
	translated string
}

// TitleCache memoizes title translations per story. Entries are replaced
// when the source title changes; failed translations are never stored.
type TitleCache struct {
	translator Translator
	target     string
	cache      *lru.Cache[int64, cachedTitle]
	logger     *slog.Logger
}

func NewTitleCache(translator Translator, target string, size int, logger *slog.Logger) (*TitleCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if target == "" {
		target = DefaultTargetLang
	}
	cache, err := lru.New[int64, cachedTitle](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &TitleCache{
		translator: translator,
		target:     target,
		cache:      cache,
		logger:     logger.With("component", "title_cache"),
	}, nil
}

// Title returns the translated title, or title itself if translation fails.
func (c *TitleCache) Title(ctx context.Context, storyID int64, title string) string {
	if title == "" {
		return ""
	}
	if hit, ok := c.cache.Get(storyID); ok && hit.source == title {
		return hit.translated
	}

	translated, err := c.translator.Translate(ctx, title, c.target)
	if err != nil {
		c.logger.Warn("failed to translate title", "story_id", storyID, "error", err)
		return title
	}

	c.cache.Add(storyID, cachedTitle{source: title, translated: translated})
	return translated
}

func (c *TitleCache) Len() int {
	return c.cache.Len()
}

// Close drops every cached entry.
func (c *TitleCache) Close() {
	c.cache.Purge()
}
