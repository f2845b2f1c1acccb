package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestLock_OwnerIDsDiffer(t *testing.T) {
	_, client := setupTestRedis(t)

	a := NewLock(client)
	b := NewLock(client)

	assert.NotEmpty(t, a.OwnerID())
	assert.NotEqual(t, a.OwnerID(), b.OwnerID())
}

func TestLock_AcquireIsExclusive(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	worker := NewLock(client)
	api := NewLock(client)

	ok, err := worker.Acquire(ctx, "harvest:paris", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = api.Acquire(ctx, "harvest:paris", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other cities stay free
	ok, err = api.Acquire(ctx, "harvest:rome", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, worker.OwnerID(), mustGet(t, mr, "lowkey:lock:harvest:paris"))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestLock_ReleaseOnlyByOwner(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	owner := NewLock(client)
	other := NewLock(client)

	ok, err := owner.Acquire(ctx, "harvest:all", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, other.Release(ctx, "harvest:all"))
	assert.True(t, mr.Exists("lowkey:lock:harvest:all"))

	require.NoError(t, owner.Release(ctx, "harvest:all"))
	assert.False(t, mr.Exists("lowkey:lock:harvest:all"))

	// Releasing a free lock is fine
	require.NoError(t, owner.Release(ctx, "harvest:all"))
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	a := NewLock(client)
	b := NewLock(client)

	ok, err := a.Acquire(ctx, "scheduler", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = b.Acquire(ctx, "scheduler", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	owner := NewLock(client)
	other := NewLock(client)

	ok, err := owner.Acquire(ctx, "harvest:tokyo", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, owner.Extend(ctx, "harvest:tokyo", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("lowkey:lock:harvest:tokyo"))

	assert.Error(t, other.Extend(ctx, "harvest:tokyo", time.Minute))
	assert.Error(t, owner.Extend(ctx, "harvest:lisbon", time.Minute))
}

func TestLock_Holder(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	lock := NewLock(client)

	holder, err := lock.Holder(ctx, "harvest:paris")
	require.NoError(t, err)
	assert.Empty(t, holder)

	_, err = lock.Acquire(ctx, "harvest:paris", time.Minute)
	require.NoError(t, err)

	holder, err = lock.Holder(ctx, "harvest:paris")
	require.NoError(t, err)
	assert.Equal(t, lock.OwnerID(), holder)
}

func TestLock_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	lock := NewLock(client)

	assert.NoError(t, lock.Ping(context.Background()))

	mr.Close()
	assert.Error(t, lock.Ping(context.Background()))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
