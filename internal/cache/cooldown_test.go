package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCooldown_Redis(t *testing.T) {
	t.Parallel()
	mr, rdb := newMiniRedis(t)
	ctx := context.Background()
	c := NewCooldown(rdb, 2*time.Second)

	ok, err := c.Allow(ctx, "comment_vote", 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Allow(ctx, "comment_vote", 7)
	require.NoError(t, err)
	assert.False(t, ok, "second call inside the window must be rejected")

	ok, err = c.Allow(ctx, "comment_edit", 7)
	require.NoError(t, err)
	assert.True(t, ok, "actions are throttled independently")

	ok, err = c.Allow(ctx, "comment_vote", 8)
	require.NoError(t, err)
	assert.True(t, ok, "users are throttled independently")

	assert.True(t, mr.Exists(Key("comment_vote", 7)))
	mr.FastForward(2*time.Second + time.Millisecond)

	ok, err = c.Allow(ctx, "comment_vote", 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldown_ConcurrentCallsAdmitOne(t *testing.T) {
	t.Parallel()
	_, rdb := newMiniRedis(t)
	c := NewCooldown(rdb, time.Minute)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.Allow(context.Background(), "comment_vote", 1)
			if err == nil && ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), allowed.Load())
}

func TestCooldown_FallsBackWhenRedisFails(t *testing.T) {
	t.Parallel()
	mr, rdb := newMiniRedis(t)
	mr.Close()

	now := time.Unix(1_700_000_000, 0)
	c := NewCooldown(rdb, 2*time.Second)
	c.now = func() time.Time { return now }

	ok, err := c.Allow(context.Background(), "comment_reply", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Allow(context.Background(), "comment_reply", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	ok, err = c.Allow(context.Background(), "comment_reply", 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldown_WithoutRedisOrWindow(t *testing.T) {
	t.Parallel()

	local := NewCooldown(nil, time.Minute)
	ok, _ := local.Allow(context.Background(), "comment_flag", 1)
	assert.True(t, ok)
	ok, _ = local.Allow(context.Background(), "comment_flag", 1)
	assert.False(t, ok)

	disabled := NewCooldown(nil, 0)
	for i := 0; i < 3; i++ {
		ok, _ = disabled.Allow(context.Background(), "comment_flag", 1)
		assert.True(t, ok)
	}
}

func TestLocal_Expiry(t *testing.T) {
	t.Parallel()

	c, err := NewLocal[uint, string](2, time.Minute)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set(1, "alice")
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	now = now.Add(time.Minute + time.Second)
	_, ok = c.Get(1)
	assert.False(t, ok)

	c.Set(1, "a")
	c.Set(2, "b")
	c.Set(3, "c")
	_, ok = c.Get(1)
	assert.False(t, ok, "least recently used entry is evicted")

	c.Delete(2)
	_, ok = c.Get(2)
	assert.False(t, ok)
}
