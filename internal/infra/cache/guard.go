// Package cache はRedisクライアントの薄いラッパー。
// Redisが落ちていても呼び出し側は止まらない（Guardが使える/使えないを判断する）。
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"boilerplate/internal/logging"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var ErrUnavailable = errors.New("cache unavailable")

// Guardはキャッシュの健康状態を持つサーキットブレーカー。
// 失敗が報告されたら閉じ、probeIntervalに1回だけPINGして復帰を試す。
type Guard struct {
	client  redis.UniversalClient
	log     logging.Logger
	healthy atomic.Bool
	probe   *rate.Limiter
	warn    *rate.Sometimes

	onChange atomic.Pointer[func(available bool)]
}

// clientがnilならキャッシュ無効（常にunavailable）
func NewGuard(client redis.UniversalClient, probeInterval time.Duration, log logging.Logger) *Guard {
	if probeInterval <= 0 {
		probeInterval = 5 * time.Second
	}
	g := &Guard{
		client: client,
		log:    log,
		probe:  rate.NewLimiter(rate.Every(probeInterval), 1),
		warn:   &rate.Sometimes{Interval: 30 * time.Second},
	}
	g.healthy.Store(client != nil)
	return g
}

// NewClientは設定からRedisクライアントを作る。addrが空ならnil。
func NewClient(addr, password string, db int, dialTimeout, commandTimeout time.Duration) redis.UniversalClient {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  dialTimeout,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
		MaxRetries:   1,
	})
}

// 状態が変わった時に呼ぶ（metrics用）
func (g *Guard) OnStateChange(fn func(available bool)) {
	g.onChange.Store(&fn)
	fn(g.healthy.Load())
}

func (g *Guard) Client() redis.UniversalClient {
	return g.client
}

// Pingは起動時の疎通確認。失敗してもunavailableにするだけ。
func (g *Guard) Ping(ctx context.Context) error {
	if g.client == nil {
		return ErrUnavailable
	}
	if err := g.client.Ping(ctx).Err(); err != nil {
		g.Report(ctx, "ping", err)
		return err
	}
	g.setHealthy(true)
	return nil
}

// Availableは今キャッシュを使ってよいかを返す。
func (g *Guard) Available(ctx context.Context) bool {
	if g.client == nil {
		return false
	}
	if g.healthy.Load() {
		return true
	}
	if !g.probe.Allow() {
		return false
	}
	if err := g.client.Ping(ctx).Err(); err != nil {
		return false
	}
	g.setHealthy(true)
	g.log.Info(ctx, "cache connection recovered")
	return true
}

// Reportはコマンド失敗を受け取り、キャッシュを閉じる。redis.Nilは失敗ではない。
func (g *Guard) Report(ctx context.Context, op string, err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	g.setHealthy(false)
	g.warn.Do(func() {
		g.log.Warn(ctx, "cache operation failed, continuing without cache", "op", op, "error", err)
	})
}

func (g *Guard) setHealthy(v bool) {
	if g.healthy.Swap(v) == v {
		return
	}
	if fn := g.onChange.Load(); fn != nil {
		(*fn)(v)
	}
}

func (g *Guard) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
