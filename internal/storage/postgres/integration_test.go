//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"hn_insight/internal/domain"
	"hn_insight/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_stories.up.sql"),
			filepath.Join(migrationsPath, "002_create_ai_summaries.up.sql"),
			filepath.Join(migrationsPath, "003_create_cron_locks.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM ai_summaries")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM stories")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM cron_locks")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func newStory(id int64, points int) *domain.Story {
	return &domain.Story{
		ID:          id,
		Title:       "Story",
		URL:         utils.Ptr("https://www.example.com/post"),
		Author:      utils.Ptr("pg"),
		PostedAt:    time.Now().Add(-time.Duration(id) * time.Minute).Truncate(time.Microsecond),
		Points:      points,
		NumComments: 3,
		Kids:        "[1,2,3]",
		Domain:      "example.com",
		Type:        "story",
	}
}

func newSummary(id int64) *domain.Summary {
	return &domain.Summary{
		StoryID:     id,
		Technical:   "- fast",
		TechnicalZh: "- 快",
		Layman:      "It is fast.",
		LaymanZh:    "它很快。",
		Comments:    "People agree.",
		CommentsZh:  "大家同意。",
		Keywords:    []string{"go", "db"},
		Sentiment:   domain.Sentiment{Constructive: 70, Technical: 80, Controversial: 5},
	}
}

func (s *PostgresIntegrationSuite) TestStoryStore_Upsert_InsertThenUpdate() {
	store := NewStoryStore(s.db)

	story := newStory(100, 10)
	story.CommentsDump = utils.Ptr("[Comment 1]: hi\n")
	isNew, err := store.Upsert(s.ctx, story)
	s.Require().NoError(err)
	s.True(isNew)

	updated := newStory(100, 42)
	updated.Status = domain.StoryStatusFailed
	isNew, err = store.Upsert(s.ctx, updated)
	s.Require().NoError(err)
	s.False(isNew)

	got, err := store.Get(s.ctx, 100)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(42, got.Points)
	s.Equal(domain.StoryStatusPending, got.Status, "status is not overwritten by refresh")
	s.Require().NotNil(got.CommentsDump)
	s.Equal("[Comment 1]: hi\n", *got.CommentsDump, "nil dump keeps the stored one")
	s.True(!got.UpdatedAt.Before(got.CreatedAt))
}

func (s *PostgresIntegrationSuite) TestStoryStore_Upsert_Idempotent() {
	store := NewStoryStore(s.db)

	for i := 0; i < 3; i++ {
		_, err := store.Upsert(s.ctx, newStory(7, 1))
		s.Require().NoError(err)
	}

	n, err := store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresIntegrationSuite) TestStoryStore_GetMissing() {
	got, err := NewStoryStore(s.db).Get(s.ctx, 404)
	s.NoError(err)
	s.Nil(got)
}

func (s *PostgresIntegrationSuite) TestStoryStore_ListSettledIDs() {
	stories := NewStoryStore(s.db)
	summaries := NewSummaryStore(s.db)

	for _, id := range []int64{1, 2, 3} {
		_, err := stories.Upsert(s.ctx, newStory(id, 1))
		s.Require().NoError(err)
	}
	s.Require().NoError(summaries.Upsert(s.ctx, newSummary(1)))
	s.Require().NoError(stories.UpdateStatus(s.ctx, 2, domain.StoryStatusSkipped))

	settled, err := stories.ListSettledIDs(s.ctx, []int64{1, 2, 3, 4})
	s.Require().NoError(err)
	s.Equal(map[int64]bool{1: true, 2: true}, settled)

	empty, err := stories.ListSettledIDs(s.ctx, nil)
	s.NoError(err)
	s.Empty(empty)
}

func (s *PostgresIntegrationSuite) TestStoryStore_ListRetryCandidates() {
	stories := NewStoryStore(s.db)
	summaries := NewSummaryStore(s.db)

	withDump := func(id int64) *domain.Story {
		st := newStory(id, 1)
		st.CommentsDump = utils.Ptr("")
		return st
	}

	// 1: summarized, 2: skipped, 3: no dump, 4 and 5: candidates
	for _, st := range []*domain.Story{withDump(1), withDump(2), newStory(3, 1), withDump(4), withDump(5)} {
		_, err := stories.Upsert(s.ctx, st)
		s.Require().NoError(err)
	}
	s.Require().NoError(summaries.Upsert(s.ctx, newSummary(1)))
	s.Require().NoError(stories.UpdateStatus(s.ctx, 2, domain.StoryStatusSkipped))
	s.Require().NoError(stories.UpdateStatus(s.ctx, 5, domain.StoryStatusFailed))

	got, err := stories.ListRetryCandidates(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	// newest posted first; lower ids were posted later
	s.Equal(int64(4), got[0].ID)
	s.Equal(int64(5), got[1].ID)
}

func (s *PostgresIntegrationSuite) TestStoryStore_SetText() {
	store := NewStoryStore(s.db)
	_, err := store.Upsert(s.ctx, newStory(9, 1))
	s.Require().NoError(err)

	s.Require().NoError(store.SetText(s.ctx, 9, "<p>Ask HN body</p>"))

	got, err := store.Get(s.ctx, 9)
	s.Require().NoError(err)
	s.Require().NotNil(got.Text)
	s.Equal("<p>Ask HN body</p>", *got.Text)
}

func (s *PostgresIntegrationSuite) TestStoryStore_EnforceRetention() {
	stories := NewStoryStore(s.db)
	summaries := NewSummaryStore(s.db)

	for id := int64(1); id <= 8; id++ {
		_, err := stories.Upsert(s.ctx, newStory(id, int(id)))
		s.Require().NoError(err)
	}
	s.Require().NoError(summaries.Upsert(s.ctx, newSummary(1)))

	// make 1 and 2 the least recently updated
	_, err := s.db.ExecContext(s.ctx, "UPDATE stories SET updated_at = now() - interval '1 hour' WHERE id IN (1, 2)")
	s.Require().NoError(err)

	deleted, err := stories.EnforceRetention(s.ctx, 6)
	s.Require().NoError(err)
	s.Equal(2, deleted)

	n, err := stories.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(6, n)

	got, err := stories.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Nil(got)

	var summaryCount int
	s.Require().NoError(s.db.GetContext(s.ctx, &summaryCount, "SELECT COUNT(*) FROM ai_summaries"))
	s.Equal(0, summaryCount, "summary removed with its story")

	deleted, err = stories.EnforceRetention(s.ctx, 6)
	s.Require().NoError(err)
	s.Equal(0, deleted)
}

func (s *PostgresIntegrationSuite) TestStoryStore_ListPage() {
	stories := NewStoryStore(s.db)
	summaries := NewSummaryStore(s.db)

	for _, st := range []*domain.Story{newStory(1, 50), newStory(2, 90), newStory(3, 50)} {
		_, err := stories.Upsert(s.ctx, st)
		s.Require().NoError(err)
	}
	s.Require().NoError(summaries.Upsert(s.ctx, newSummary(3)))

	page, err := stories.ListPage(s.ctx, 2, 0)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(int64(2), page[0].ID)
	s.Nil(page[0].Summary)
	s.Equal(int64(3), page[1].ID, "ties broken by id descending")
	s.Require().NotNil(page[1].Summary)
	s.Equal([]string{"go", "db"}, page[1].Summary.Keywords)
	s.Equal(domain.Sentiment{Constructive: 70, Technical: 80, Controversial: 5}, page[1].Summary.Sentiment)

	page, err = stories.ListPage(s.ctx, 2, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(int64(1), page[0].ID)
}

func (s *PostgresIntegrationSuite) TestSummaryStore_UpsertReplaces() {
	stories := NewStoryStore(s.db)
	summaries := NewSummaryStore(s.db)
	_, err := stories.Upsert(s.ctx, newStory(5, 1))
	s.Require().NoError(err)

	s.Require().NoError(summaries.Upsert(s.ctx, newSummary(5)))
	second := newSummary(5)
	second.Layman = "Rewritten."
	second.Keywords = nil
	s.Require().NoError(summaries.Upsert(s.ctx, second))

	var row struct {
		Layman   string `db:"layman"`
		Keywords string `db:"keywords"`
		Count    int    `db:"n"`
	}
	s.Require().NoError(s.db.GetContext(s.ctx, &row,
		"SELECT layman, keywords, (SELECT COUNT(*) FROM ai_summaries) AS n FROM ai_summaries WHERE story_id = 5"))
	s.Equal("Rewritten.", row.Layman)
	s.Equal("[]", row.Keywords)
	s.Equal(1, row.Count)
}

func (s *PostgresIntegrationSuite) TestLockStore_SingleHolder() {
	const workers = 8
	var acquired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := NewLockStore(s.db).Acquire(s.ctx, "process_news", time.Minute)
			s.NoError(err)
			if ok {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), acquired.Load())
}

func (s *PostgresIntegrationSuite) TestLockStore_ReleaseAndReacquire() {
	locks := NewLockStore(s.db)

	token, ok, err := locks.Acquire(s.ctx, "fetch_stories", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
	s.NotEmpty(token)

	_, ok, err = locks.Acquire(s.ctx, "fetch_stories", time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	// only the acquisition's own token releases
	s.Require().NoError(locks.Release(s.ctx, "fetch_stories", "someone-else"))
	_, ok, err = locks.Acquire(s.ctx, "fetch_stories", time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(locks.Release(s.ctx, "fetch_stories", token))
	_, ok, err = locks.Acquire(s.ctx, "fetch_stories", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *PostgresIntegrationSuite) TestLockStore_ExpiredLockIsTakenOver() {
	locks := NewLockStore(s.db)

	_, ok, err := locks.Acquire(s.ctx, "retry_summaries", 50*time.Millisecond)
	s.Require().NoError(err)
	s.True(ok)

	time.Sleep(200 * time.Millisecond)

	_, ok, err = locks.Acquire(s.ctx, "retry_summaries", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *PostgresIntegrationSuite) TestLockStore_StaleReleaseKeepsNewHolder() {
	locks := NewLockStore(s.db)

	first, ok, err := locks.Acquire(s.ctx, "process_news", 50*time.Millisecond)
	s.Require().NoError(err)
	s.Require().True(ok)

	time.Sleep(200 * time.Millisecond)

	second, ok, err := locks.Acquire(s.ctx, "process_news", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.NotEqual(first, second)

	s.Require().NoError(locks.Release(s.ctx, "process_news", first))

	_, ok, err = locks.Acquire(s.ctx, "process_news", time.Minute)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	stories := NewStoryStore(s.db)
	summaries := NewSummaryStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := stories.Upsert(ctx, newStory(999, 1)); err != nil {
			return err
		}
		if err := summaries.Upsert(ctx, newSummary(999)); err != nil {
			return err
		}
		return stories.UpdateStatus(ctx, 999, domain.StoryStatusCompleted)
	})
	s.Require().NoError(err)

	got, err := stories.Get(s.ctx, 999)
	s.Require().NoError(err)
	s.Equal(domain.StoryStatusCompleted, got.Status)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	stories := NewStoryStore(s.db)
	summaries := NewSummaryStore(s.db)

	_, err := stories.Upsert(s.ctx, newStory(888, 1))
	s.Require().NoError(err)

	errBoom := errors.New("boom")
	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := summaries.Upsert(ctx, newSummary(888)); err != nil {
			return err
		}
		if err := stories.UpdateStatus(ctx, 888, domain.StoryStatusCompleted); err != nil {
			return err
		}
		return errBoom
	})
	s.ErrorIs(err, errBoom)

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM ai_summaries WHERE story_id = $1", 888))
	s.Equal(0, count)

	got, err := stories.Get(s.ctx, 888)
	s.Require().NoError(err)
	s.Equal(domain.StoryStatusPending, got.Status)
}
