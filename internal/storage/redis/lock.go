package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "hn_insight:lock"

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a job lock on a single Redis key per job. Keys expire on their
// own, so a crashed holder releases the lock after ttl. Every acquisition
// gets its own token, and only that token releases it.
type Locker struct {
	client *redis.Client
	prefix string
}

func NewLocker(client *redis.Client, prefix string) *Locker {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

func (l *Locker) key(jobID string) string {
	return l.prefix + ":" + jobID
}

// Acquire returns the token of the new acquisition, or ok=false when the
// lock is held.
func (l *Locker) Acquire(ctx context.Context, jobID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(jobID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", jobID, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, jobID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(jobID)}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", jobID, err)
	}
	return nil
}
