package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BillingLockKey builds redis keys for the per-(unit, period) critical
// section. The uniqueness constraint is the real guard; the lock just keeps
// two saves from interleaving their charge merges.
func BillingLockKey(unitID int64, period string) string {
	return fmt.Sprintf("billing:%d:%s:lock", unitID, period)
}

// Locker serialises billing saves through redis.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker constructs a Locker. A nil client disables locking, which is
// acceptable for single-process deployments and tests.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lock for a key. Returns ErrLocked when another save
// holds it.
func (l *Locker) Acquire(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return nil
	}
	ok, err := l.client.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Release frees the lock. Safe to call on keys that already expired.
func (l *Locker) Release(ctx context.Context, key string) {
	if l == nil || l.client == nil {
		return
	}
	_ = l.client.Del(ctx, key).Err()
}
