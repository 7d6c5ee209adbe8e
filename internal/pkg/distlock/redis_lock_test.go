package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLockAcquireRelease(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "queue-processor", time.Minute)
	l2 := NewRedisLock(client, "queue-processor", time.Minute)

	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second holder is rejected while the lock is held.
	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l1.Release(ctx))

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "queue-processor", time.Minute)
	l2 := NewRedisLock(client, "queue-processor", time.Minute)

	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// l2 never acquired; its release must not free l1's lock.
	require.NoError(t, l2.Release(ctx))

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLockDifferentKeysIndependent(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "queue-processor", time.Minute)
	l2 := NewRedisLock(client, "other-job", time.Minute)

	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewPrefersRedis(t *testing.T) {
	client := newTestRedis(t)

	lock := New(client, nil, "k", time.Minute)
	_, isRedis := lock.(*RedisLock)
	assert.True(t, isRedis)

	lock = New(nil, nil, "k", time.Minute)
	_, isPG := lock.(*PGAdvisoryLock)
	assert.True(t, isPG)
}
