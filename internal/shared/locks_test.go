package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBillingLockKey(t *testing.T) {
	require.Equal(t, "billing:10:2026-03:lock", BillingLockKey(10, "2026-03"))
}

func TestLockerAcquireRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewLocker(client, time.Minute)
	ctx := context.Background()
	key := BillingLockKey(10, "2026-03")

	require.NoError(t, locker.Acquire(ctx, key))
	require.ErrorIs(t, locker.Acquire(ctx, key), ErrLocked)

	locker.Release(ctx, key)
	require.NoError(t, locker.Acquire(ctx, key))
}

func TestLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewLocker(client, time.Second)
	ctx := context.Background()
	key := BillingLockKey(10, "2026-03")

	require.NoError(t, locker.Acquire(ctx, key))
	mr.FastForward(2 * time.Second)
	require.NoError(t, locker.Acquire(ctx, key), "expired lock must be reacquirable")
}

func TestLockerNilClientDisablesLocking(t *testing.T) {
	var locker *Locker
	ctx := context.Background()
	require.NoError(t, locker.Acquire(ctx, "any"))
	locker.Release(ctx, "any")
}
