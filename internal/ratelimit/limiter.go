// Package ratelimit は固定窓のリクエスト制限。
// キャッシュが使えない時は通す（fail-open）。
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boilerplate/internal/logging"
)

// 呼び出しごとに識別子（user idかIP）を決める
type Mode int

const (
	ByIP Mode = iota
	ByUser
)

type Config struct {
	Prefix        string
	Window        time.Duration
	MaxRequests   int64
	BlockDuration time.Duration
	Mode          Mode
}

// Counterはcache.Counterが満たす
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// 上限超過。RetryAfterは窓が明けるまでの残り時間。
type LimitedError struct {
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return "too many requests"
}

// Detailは人が読むリトライの目安
func (e *LimitedError) Detail() string {
	return fmt.Sprintf("Please try again in %d seconds", int64(e.RetryAfter.Round(time.Second)/time.Second))
}

var ErrLimited = errors.New("too many requests")

func (e *LimitedError) Is(target error) bool {
	return target == ErrLimited
}

type Limiter struct {
	cfg     Config
	counter Counter
	log     logging.Logger

	// 通した理由の記録（metrics用）。reasonは"cache_unavailable"など。
	OnBypass func(reason string)
	OnReject func(prefix string)
}

func New(cfg Config, counter Counter, log logging.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = cfg.Window
	}
	return &Limiter{cfg: cfg, counter: counter, log: log}
}

func (l *Limiter) Config() Config {
	return l.cfg
}

func (l *Limiter) Key(identity string) string {
	return l.cfg.Prefix + identity
}

func (l *Limiter) BlockedKey(identity string) string {
	return l.cfg.Prefix + "blocked:" + identity
}

// Allowはnilなら通す、*LimitedErrorなら429。キャッシュ障害はnil。
func (l *Limiter) Allow(ctx context.Context, identity string) error {
	key := l.Key(identity)

	count, err := l.counter.Incr(ctx, key, l.cfg.Window)
	if err != nil {
		l.bypass(ctx, "cache_unavailable", key, err)
		return nil
	}
	if count <= l.cfg.MaxRequests {
		return nil
	}

	// ブロック印は書くだけ（判定には使わない）
	if err := l.counter.Mark(ctx, l.BlockedKey(identity), l.cfg.BlockDuration); err != nil {
		l.log.Warn(ctx, "rate limit: failed to write blocked marker", "key", key, "error", err)
	}

	retry, err := l.counter.TTL(ctx, key)
	if err != nil || retry <= 0 {
		retry = l.cfg.Window
	}
	if l.OnReject != nil {
		l.OnReject(l.cfg.Prefix)
	}
	return &LimitedError{RetryAfter: retry}
}

func (l *Limiter) bypass(ctx context.Context, reason, key string, err error) {
	l.log.Warn(ctx, "rate limit skipped", "reason", reason, "key", key, "error", err)
	if l.OnBypass != nil {
		l.OnBypass(reason)
	}
}
