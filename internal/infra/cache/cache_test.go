package cache

import (
	"context"
	"testing"
	"time"

	"boilerplate/internal/logging"
	"boilerplate/internal/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewGuard(rdb, 10*time.Millisecond, logging.Nop()), mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "access_token:u-1", Key("u-1", token.TypeAccess))
	assert.Equal(t, "refresh_token:u-1", Key("u-1", token.TypeRefresh))
}

func TestSessionCache_StoreFetchDelete(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestGuard(t)
	c := NewSessionCache(g, logging.Nop())

	key, ok := c.Store(ctx, "u-1", "tok-1", token.TypeAccess, time.Hour)
	require.True(t, ok)
	assert.Equal(t, "access_token:u-1", key)
	assert.Equal(t, time.Hour, mr.TTL(key))

	got, ok := c.Fetch(ctx, "u-1", token.TypeAccess)
	require.True(t, ok)
	assert.Equal(t, "tok-1", got)

	// 上書き
	_, ok = c.Store(ctx, "u-1", "tok-2", token.TypeAccess, time.Hour)
	require.True(t, ok)
	got, _ = c.Fetch(ctx, "u-1", token.TypeAccess)
	assert.Equal(t, "tok-2", got)

	c.Delete(ctx, "u-1", token.TypeAccess)
	_, ok = c.Fetch(ctx, "u-1", token.TypeAccess)
	assert.False(t, ok)

	// ミスは障害ではない
	tok, err := c.Lookup(ctx, "u-1", token.TypeAccess)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSessionCache_Expires(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestGuard(t)
	c := NewSessionCache(g, logging.Nop())

	_, ok := c.Store(ctx, "u-1", "tok", token.TypeRefresh, time.Minute)
	require.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	_, ok = c.Fetch(ctx, "u-1", token.TypeRefresh)
	assert.False(t, ok)
}

// クライアント無しでも落ちない
func TestSessionCache_NoClient(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(nil, time.Second, logging.Nop())
	c := NewSessionCache(g, logging.Nop())

	assert.False(t, c.Available(ctx))
	key, ok := c.Store(ctx, "u-1", "tok", token.TypeAccess, time.Hour)
	assert.False(t, ok)
	assert.Empty(t, key)

	_, ok = c.Fetch(ctx, "u-1", token.TypeAccess)
	assert.False(t, ok)
	_, err := c.Lookup(ctx, "u-1", token.TypeAccess)
	assert.ErrorIs(t, err, ErrUnavailable)

	c.Delete(ctx, "u-1", token.TypeAccess)
	assert.NoError(t, g.Close())
}

// Redisが落ちたらunavailable、戻ったら復帰する
func TestGuard_TripAndRecover(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestGuard(t)
	c := NewSessionCache(g, logging.Nop())

	var states []bool
	g.OnStateChange(func(available bool) { states = append(states, available) })
	require.True(t, g.Available(ctx))

	mr.Close()

	_, ok := c.Store(ctx, "u-1", "tok", token.TypeAccess, time.Hour)
	assert.False(t, ok)
	assert.False(t, g.Available(ctx))

	_, err := c.Lookup(ctx, "u-1", token.TypeAccess)
	assert.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, mr.Restart())
	require.Eventually(t, func() bool { return g.Available(ctx) }, 2*time.Second, 20*time.Millisecond)

	_, ok = c.Store(ctx, "u-1", "tok", token.TypeAccess, time.Hour)
	assert.True(t, ok)
	assert.Equal(t, []bool{true, false, true}, states)
}

func TestCounter_IncrSetsTTLOnFirstHit(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestGuard(t)
	c := NewCounter(g)

	n, err := c.Incr(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("rl:1.2.3.4"))

	mr.FastForward(10 * time.Second)
	n, err = c.Incr(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	// 2回目以降はTTLを延ばさない
	assert.Equal(t, 50*time.Second, mr.TTL("rl:1.2.3.4"))

	ttl, err := c.TTL(ctx, "rl:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 50*time.Second, ttl)

	ttl, err = c.TTL(ctx, "rl:none")
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

// TTL無しで残ったキーにも窓が付き直す
func TestCounter_IncrRepairsKeyWithoutTTL(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestGuard(t)
	c := NewCounter(g)

	require.NoError(t, mr.Set("rl:9.9.9.9", "7"))
	assert.Zero(t, mr.TTL("rl:9.9.9.9"))

	n, err := c.Incr(ctx, "rl:9.9.9.9", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, time.Minute, mr.TTL("rl:9.9.9.9"))

	mr.FastForward(time.Minute + time.Second)
	n, err = c.Incr(ctx, "rl:9.9.9.9", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCounter_Mark(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestGuard(t)
	c := NewCounter(g)

	require.NoError(t, c.Mark(ctx, "rl:blocked:u-1", 2*time.Minute))
	v, err := mr.Get("rl:blocked:u-1")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2*time.Minute, mr.TTL("rl:blocked:u-1"))
}

func TestCounter_Unavailable(t *testing.T) {
	ctx := context.Background()
	g, mr := newTestGuard(t)
	c := NewCounter(g)
	mr.Close()

	_, err := c.Incr(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)
}
