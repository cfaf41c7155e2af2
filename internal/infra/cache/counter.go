package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counterは固定窓のカウンタ（INCR + TTLが無い時だけEXPIRE）。
type Counter struct {
	guard *Guard
}

func NewCounter(guard *Guard) *Counter {
	return &Counter{guard: guard}
}

func (c *Counter) Available(ctx context.Context) bool {
	return c.guard.Available(ctx)
}

// Incrはkeyを+1して、新しい値を返す。
// INCRとEXPIRE NXを同じMULTIで送るので、キーがTTL無しで残ることはない。
func (c *Counter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !c.guard.Available(ctx) {
		return 0, ErrUnavailable
	}

	var incr *redis.IntCmd
	_, err := c.guard.Client().TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		c.guard.Report(ctx, "incr", err)
		return 0, ErrUnavailable
	}
	return incr.Val(), nil
}

// TTLは残り時間。期限なし・キーなしは0。
func (c *Counter) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !c.guard.Available(ctx) {
		return 0, ErrUnavailable
	}
	d, err := c.guard.Client().TTL(ctx, key).Result()
	if err != nil {
		c.guard.Report(ctx, "ttl", err)
		return 0, ErrUnavailable
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Markは値"1"をttl付きで置く（ブロック印など）。
func (c *Counter) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if !c.guard.Available(ctx) {
		return ErrUnavailable
	}
	if err := c.guard.Client().Set(ctx, key, "1", ttl).Err(); err != nil {
		c.guard.Report(ctx, "set", err)
		return ErrUnavailable
	}
	return nil
}
