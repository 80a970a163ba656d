package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"hn_insight/internal/domain"
)

type SummaryStore struct {
	db *sqlx.DB
}

func NewSummaryStore(db *sqlx.DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// Upsert writes every summary field in one statement, replacing any
// previous summary for the story.
func (s *SummaryStore) Upsert(ctx context.Context, summary *domain.Summary) error {
	keywords := summary.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	query := `
		INSERT INTO ai_summaries (
			story_id, technical, technical_zh, layman, layman_zh, comments, comments_zh,
			keywords, sentiment_constructive, sentiment_technical, sentiment_controversial
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (story_id) DO UPDATE SET
			technical = EXCLUDED.technical,
			technical_zh = EXCLUDED.technical_zh,
			layman = EXCLUDED.layman,
			layman_zh = EXCLUDED.layman_zh,
			comments = EXCLUDED.comments,
			comments_zh = EXCLUDED.comments_zh,
			keywords = EXCLUDED.keywords,
			sentiment_constructive = EXCLUDED.sentiment_constructive,
			sentiment_technical = EXCLUDED.sentiment_technical,
			sentiment_controversial = EXCLUDED.sentiment_controversial,
			updated_at = now()`

	_, err = executor(ctx, s.db).ExecContext(ctx, query,
		summary.StoryID,
		summary.Technical,
		summary.TechnicalZh,
		summary.Layman,
		summary.LaymanZh,
		summary.Comments,
		summary.CommentsZh,
		string(encoded),
		summary.Sentiment.Constructive,
		summary.Sentiment.Technical,
		summary.Sentiment.Controversial,
	)
	if err != nil {
		return fmt.Errorf("upsert summary for story %d: %w", summary.StoryID, err)
	}
	return nil
}
