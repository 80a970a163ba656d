package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LockStore keeps one cron_locks row per job. A row whose expiry has passed
// is taken over by the next acquirer, so a crashed holder never blocks a job
// for longer than its ttl. Each acquisition writes a fresh holder token.
type LockStore struct {
	db *sqlx.DB
}

func NewLockStore(db *sqlx.DB) *LockStore {
	return &LockStore{db: db}
}

// Acquire returns the holder token of the new acquisition, or ok=false when
// an unexpired lock exists.
func (s *LockStore) Acquire(ctx context.Context, jobID string, ttl time.Duration) (string, bool, error) {
	holder := uuid.NewString()
	query := `
		INSERT INTO cron_locks (id, holder, locked_at, expires_at)
		VALUES ($1, $2, now(), now() + $3::double precision * interval '1 millisecond')
		ON CONFLICT (id) DO UPDATE SET
			holder = EXCLUDED.holder,
			locked_at = EXCLUDED.locked_at,
			expires_at = EXCLUDED.expires_at
		WHERE cron_locks.expires_at < EXCLUDED.locked_at
		RETURNING id`

	var id string
	err := s.db.QueryRowxContext(ctx, query, jobID, holder, ttl.Milliseconds()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", jobID, err)
	}
	return holder, true, nil
}

// Release drops the lock only if it still belongs to the acquisition that
// produced token.
func (s *LockStore) Release(ctx context.Context, jobID, token string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cron_locks WHERE id = $1 AND holder = $2",
		jobID, token,
	)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", jobID, err)
	}
	return nil
}
