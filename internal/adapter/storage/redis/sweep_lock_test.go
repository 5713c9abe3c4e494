package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSweepLock(t *testing.T) (*SweepLock, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSweepLock(client), mr
}

func TestSweepLock_AcquireRelease(t *testing.T) {
	lock, _ := setupSweepLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "first acquire should win")

	ok, err = lock.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire while held should lose")

	// independent names do not contend
	ok, err = lock.Acquire(ctx, "settlement", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx, "profit-accrual"))

	ok, err = lock.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "acquire after release should win")
}

func TestSweepLock_TTLExpiry(t *testing.T) {
	lock, mr := setupSweepLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = lock.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock should be reclaimable after TTL expiry")
}

func TestSweepLock_ReleaseDoesNotDropSuccessorsLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// Two workers sharing the same Redis.
	workerA := NewSweepLock(client)
	workerB := NewSweepLock(client)
	ctx := context.Background()

	ok, err := workerA.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Worker A outlives its TTL; worker B takes the lock over.
	mr.FastForward(2 * time.Minute)
	ok, err = workerB.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A's late release must not drop B's lock.
	require.NoError(t, workerA.Release(ctx, "profit-accrual"))

	ok, err = workerA.Acquire(ctx, "profit-accrual", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock should still be held by the second worker")
}

func TestSweepLock_ReleaseUnheld(t *testing.T) {
	lock, _ := setupSweepLock(t)

	// releasing an unheld lock is a no-op
	assert.NoError(t, lock.Release(context.Background(), "expiry"))
}
