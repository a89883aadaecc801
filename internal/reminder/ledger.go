package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers which reminders already fired.
type Ledger interface {
	// Mark records key and reports whether it was new.
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// FireKey identifies one firing of r: a reminder fires at most once per
// local clock hour.
func FireKey(r Reminder, now time.Time) string {
	return r.ID.Hex() + ":" + now.Format("2006010215")
}

type redisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) Ledger {
	return &redisLedger{client: client}
}

func (l *redisLedger) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "reminder:fired:"+key, 1, ttl).Result()
}

type memoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryLedger() Ledger {
	return &memoryLedger{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (l *memoryLedger) Mark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.seen {
		if now.After(exp) {
			delete(l.seen, k)
		}
	}

	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = now.Add(ttl)
	return true, nil
}
