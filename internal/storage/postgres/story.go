package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"hn_insight/internal/domain"
)

type StoryStore struct {
	db *sqlx.DB
}

func NewStoryStore(db *sqlx.DB) *StoryStore {
	return &StoryStore{db: db}
}

// Upsert inserts the story or refreshes its metadata in place. Status is
// only set on insert, and a nil comment dump or text never clears a stored
// one. It reports whether the row was newly created.
func (s *StoryStore) Upsert(ctx context.Context, story *domain.Story) (bool, error) {
	query := `
		INSERT INTO stories (
			id, title, url, author, posted_at, points, num_comments, kids,
			comments_dump, text, domain, type, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			author = EXCLUDED.author,
			points = EXCLUDED.points,
			num_comments = EXCLUDED.num_comments,
			kids = EXCLUDED.kids,
			comments_dump = COALESCE(EXCLUDED.comments_dump, stories.comments_dump),
			text = COALESCE(EXCLUDED.text, stories.text),
			domain = EXCLUDED.domain,
			type = EXCLUDED.type,
			updated_at = now()
		RETURNING (xmax = 0)`

	status := story.Status
	if status == "" {
		status = domain.StoryStatusPending
	}
	kids := story.Kids
	if kids == "" {
		kids = "[]"
	}

	var inserted bool
	err := executor(ctx, s.db).QueryRowxContext(ctx, query,
		story.ID,
		story.Title,
		story.URL,
		story.Author,
		story.PostedAt,
		story.Points,
		story.NumComments,
		kids,
		story.CommentsDump,
		story.Text,
		story.Domain,
		story.Type,
		status,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert story %d: %w", story.ID, err)
	}
	return inserted, nil
}

func (s *StoryStore) Get(ctx context.Context, id int64) (*domain.Story, error) {
	var story domain.Story
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &story, `SELECT `+storyColumns+` FROM stories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get story %d: %w", id, err)
	}
	return &story, nil
}

func (s *StoryStore) UpdateStatus(ctx context.Context, id int64, status domain.StoryStatus) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		"UPDATE stories SET status = $2, updated_at = now() WHERE id = $1",
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update story %d status: %w", id, err)
	}
	return nil
}

// SetText stores a self-post body discovered after the first fetch.
func (s *StoryStore) SetText(ctx context.Context, id int64, text string) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		"UPDATE stories SET text = $2 WHERE id = $1",
		id, text,
	)
	if err != nil {
		return fmt.Errorf("set story %d text: %w", id, err)
	}
	return nil
}

// ListSettledIDs returns which of ids already have a summary or are in a
// terminal state, and therefore need no processing.
func (s *StoryStore) ListSettledIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	result := make(map[int64]bool)
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT s.id
		FROM stories s
		LEFT JOIN ai_summaries a ON a.story_id = s.id
		WHERE s.id = ANY($1)
		  AND (a.story_id IS NOT NULL OR s.status = $2)`

	var settled []int64
	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &settled, query, pq.Array(ids), domain.StoryStatusSkipped); err != nil {
		return nil, fmt.Errorf("list settled stories: %w", err)
	}
	for _, id := range settled {
		result[id] = true
	}
	return result, nil
}

// ListRetryCandidates returns stories that have a comment dump but no
// summary and are not terminally skipped, newest first.
func (s *StoryStore) ListRetryCandidates(ctx context.Context) ([]domain.Story, error) {
	query := `
		SELECT ` + prefixed("s", storyColumns) + `
		FROM stories s
		LEFT JOIN ai_summaries a ON a.story_id = s.id
		WHERE s.comments_dump IS NOT NULL
		  AND a.story_id IS NULL
		  AND s.status <> $1
		ORDER BY s.posted_at DESC, s.id DESC`

	var stories []domain.Story
	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &stories, query, domain.StoryStatusSkipped); err != nil {
		return nil, fmt.Errorf("list retry candidates: %w", err)
	}
	return stories, nil
}

func (s *StoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, executor(ctx, s.db), &n, "SELECT COUNT(*) FROM stories"); err != nil {
		return 0, fmt.Errorf("count stories: %w", err)
	}
	return n, nil
}

// EnforceRetention deletes the least recently updated stories beyond max.
// Summaries go with them through the foreign key cascade.
func (s *StoryStore) EnforceRetention(ctx context.Context, max int) (int, error) {
	query := `
		DELETE FROM stories
		WHERE id IN (
			SELECT id FROM stories
			ORDER BY updated_at DESC, id DESC
			OFFSET $1
		)`

	res, err := executor(ctx, s.db).ExecContext(ctx, query, max)
	if err != nil {
		return 0, fmt.Errorf("enforce retention: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("enforce retention: %w", err)
	}
	return int(n), nil
}

type storyRow struct {
	domain.Story

	Technical              sql.NullString `db:"technical"`
	TechnicalZh            sql.NullString `db:"technical_zh"`
	Layman                 sql.NullString `db:"layman"`
	LaymanZh               sql.NullString `db:"layman_zh"`
	Comments               sql.NullString `db:"comments"`
	CommentsZh             sql.NullString `db:"comments_zh"`
	Keywords               sql.NullString `db:"keywords"`
	SentimentConstructive  sql.NullInt32  `db:"sentiment_constructive"`
	SentimentTechnical     sql.NullInt32  `db:"sentiment_technical"`
	SentimentControversial sql.NullInt32  `db:"sentiment_controversial"`
	SummaryCreatedAt       sql.NullTime   `db:"summary_created_at"`
	SummaryUpdatedAt       sql.NullTime   `db:"summary_updated_at"`
}

// ListPage returns stories by points, highest first, each with its summary
// when one exists.
func (s *StoryStore) ListPage(ctx context.Context, limit, offset int) ([]domain.Story, error) {
	query := `
		SELECT ` + prefixed("s", storyColumns) + `,
			a.technical, a.technical_zh, a.layman, a.layman_zh,
			a.comments, a.comments_zh, a.keywords,
			a.sentiment_constructive, a.sentiment_technical, a.sentiment_controversial,
			a.created_at AS summary_created_at, a.updated_at AS summary_updated_at
		FROM stories s
		LEFT JOIN ai_summaries a ON a.story_id = s.id
		ORDER BY s.points DESC, s.id DESC
		LIMIT $1 OFFSET $2`

	var rows []storyRow
	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	stories := make([]domain.Story, 0, len(rows))
	for _, row := range rows {
		story := row.Story
		if row.Technical.Valid {
			summary, err := row.summary()
			if err != nil {
				return nil, err
			}
			story.Summary = summary
		}
		stories = append(stories, story)
	}
	return stories, nil
}

func (r *storyRow) summary() (*domain.Summary, error) {
	keywords, err := decodeKeywords(r.Keywords.String)
	if err != nil {
		return nil, fmt.Errorf("decode keywords for story %d: %w", r.ID, err)
	}
	return &domain.Summary{
		StoryID:     r.ID,
		Technical:   r.Technical.String,
		TechnicalZh: r.TechnicalZh.String,
		Layman:      r.Layman.String,
		LaymanZh:    r.LaymanZh.String,
		Comments:    r.Comments.String,
		CommentsZh:  r.CommentsZh.String,
		Keywords:    keywords,
		Sentiment: domain.Sentiment{
			Constructive:  int(r.SentimentConstructive.Int32),
			Technical:     int(r.SentimentTechnical.Int32),
			Controversial: int(r.SentimentControversial.Int32),
		},
		CreatedAt: r.SummaryCreatedAt.Time,
		UpdatedAt: r.SummaryUpdatedAt.Time,
	}, nil
}

func decodeKeywords(raw string) ([]string, error) {
	keywords := []string{}
	if raw == "" {
		return keywords, nil
	}
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
		return nil, err
	}
	if keywords == nil {
		keywords = []string{}
	}
	return keywords, nil
}
