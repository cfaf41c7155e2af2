package cache

import (
	"context"
	"errors"
	"time"

	"boilerplate/internal/logging"
	"boilerplate/internal/token"

	"github.com/redis/go-redis/v9"
)

// SessionCacheはユーザーごと・種類ごとに1つだけ有効なトークンを持つ。
// 書き込み・削除の失敗は呼び出し側に返さない。
type SessionCache struct {
	guard *Guard
	log   logging.Logger
}

func NewSessionCache(guard *Guard, log logging.Logger) *SessionCache {
	return &SessionCache{guard: guard, log: log}
}

// Key は "access_token:{userID}" / "refresh_token:{userID}"
func Key(userID string, typ token.Type) string {
	return string(typ) + "_token:" + userID
}

func (c *SessionCache) Available(ctx context.Context) bool {
	return c.guard.Available(ctx)
}

// Storeは上書きで保存してキーを返す。使えなければ ("", false)。
func (c *SessionCache) Store(ctx context.Context, userID, tok string, typ token.Type, ttl time.Duration) (string, bool) {
	key := Key(userID, typ)
	if !c.guard.Available(ctx) {
		c.log.Warn(ctx, "session cache unavailable, token not cached", "key", key)
		return "", false
	}
	if err := c.guard.Client().Set(ctx, key, tok, ttl).Err(); err != nil {
		c.guard.Report(ctx, "set", err)
		return "", false
	}
	return key, true
}

// Fetchはミスでも障害でも ("", false)。
func (c *SessionCache) Fetch(ctx context.Context, userID string, typ token.Type) (string, bool) {
	tok, err := c.Lookup(ctx, userID, typ)
	if err != nil || tok == "" {
		return "", false
	}
	return tok, true
}

// Lookupはミス（"", nil）と障害（ErrUnavailable）を区別する。
func (c *SessionCache) Lookup(ctx context.Context, userID string, typ token.Type) (string, error) {
	if !c.guard.Available(ctx) {
		return "", ErrUnavailable
	}
	tok, err := c.guard.Client().Get(ctx, Key(userID, typ)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		c.guard.Report(ctx, "get", err)
		return "", ErrUnavailable
	}
	return tok, nil
}

// Deleteはベストエフォート。
func (c *SessionCache) Delete(ctx context.Context, userID string, typ token.Type) {
	if !c.guard.Available(ctx) {
		return
	}
	if err := c.guard.Client().Del(ctx, Key(userID, typ)).Err(); err != nil {
		c.guard.Report(ctx, "del", err)
	}
}
