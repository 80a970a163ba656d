package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"hn_insight/internal/domain"
	"hn_insight/internal/summary"
)

type Source interface {
	ID() string
	Name() string
	TopIDs(ctx context.Context, limit int) []int64
	FetchItem(ctx context.Context, id int64) (*domain.Item, error)
	FetchItemWithComments(ctx context.Context, id int64) (*domain.StoryWithComments, error)
}

type StoryStore interface {
	Upsert(ctx context.Context, story *domain.Story) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status domain.StoryStatus) error
	SetText(ctx context.Context, id int64, text string) error
	ListSettledIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	ListRetryCandidates(ctx context.Context) ([]domain.Story, error)
	EnforceRetention(ctx context.Context, max int) (int, error)
	Count(ctx context.Context) (int, error)
}

type SummaryStore interface {
	Upsert(ctx context.Context, summary *domain.Summary) error
}

type Locker interface {
	Acquire(ctx context.Context, jobID string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, jobID, token string) error
}

type Scraper interface {
	Scrape(ctx context.Context, url string) string
}

type Generator interface {
	Generate(ctx context.Context, story domain.Item, commentDump, articleContent string, override *summary.Config) (*domain.Summary, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, story *domain.Story, summary *domain.Summary) error
	Close() error
}
