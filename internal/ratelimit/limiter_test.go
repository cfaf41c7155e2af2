package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"boilerplate/internal/infra/cache"
	"boilerplate/internal/logging"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, max int64) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	g := cache.NewGuard(rdb, time.Hour, logging.Nop())
	l := New(Config{
		Prefix:        "rl:auth:",
		Window:        60 * time.Second,
		MaxRequests:   max,
		BlockDuration: 120 * time.Second,
	}, cache.NewCounter(g), logging.Nop())
	return l, mr
}

// 6回目は429、窓が切れたら1から数え直す
func TestLimiter_SixthRequestRejected(t *testing.T) {
	ctx := context.Background()
	l, mr := newLimiter(t, 5)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(ctx, "1.2.3.4"), "request %d", i+1)
	}

	mr.FastForward(20 * time.Second)
	err := l.Allow(ctx, "1.2.3.4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLimited)

	var le *LimitedError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 40*time.Second, le.RetryAfter)
	assert.Equal(t, "Please try again in 40 seconds", le.Detail())

	// ブロック印はあるが判定には使わない
	assert.True(t, mr.Exists("rl:auth:blocked:1.2.3.4"))
	assert.Equal(t, 120*time.Second, mr.TTL("rl:auth:blocked:1.2.3.4"))

	// 窓が切れたら通る
	mr.FastForward(41 * time.Second)
	require.NoError(t, l.Allow(ctx, "1.2.3.4"))
	v, err := mr.Get("rl:auth:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

// TTL無しのカウンタが残っていても、次の窓では通る
func TestLimiter_StaleCounterWithoutTTLRecovers(t *testing.T) {
	ctx := context.Background()
	l, mr := newLimiter(t, 5)

	require.NoError(t, mr.Set("rl:auth:9.9.9.9", "19"))

	err := l.Allow(ctx, "9.9.9.9")
	var le *LimitedError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 60*time.Second, le.RetryAfter)
	assert.Equal(t, 60*time.Second, mr.TTL("rl:auth:9.9.9.9"))

	mr.FastForward(24 * time.Hour)
	require.NoError(t, l.Allow(ctx, "9.9.9.9"))
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(t, 1)

	require.NoError(t, l.Allow(ctx, "a"))
	require.NoError(t, l.Allow(ctx, "b"))
	assert.ErrorIs(t, l.Allow(ctx, "a"), ErrLimited)
}

// キャッシュが落ちていたら通す
func TestLimiter_FailOpen(t *testing.T) {
	ctx := context.Background()
	l, mr := newLimiter(t, 1)

	var reasons []string
	l.OnBypass = func(reason string) { reasons = append(reasons, reason) }

	mr.Close()
	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Allow(ctx, "1.2.3.4"))
	}
	assert.Equal(t, []string{"cache_unavailable", "cache_unavailable", "cache_unavailable"}, reasons)
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("INCR failed")
}
func (failingCounter) TTL(context.Context, string) (time.Duration, error) { return 0, nil }
func (failingCounter) Mark(context.Context, string, time.Duration) error  { return nil }

func TestLimiter_FailOpen_IncrError(t *testing.T) {
	l := New(Config{Prefix: "p:", MaxRequests: 1}, failingCounter{}, logging.Nop())
	assert.NoError(t, l.Allow(context.Background(), "x"))
}
