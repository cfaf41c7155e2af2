package auth

import (
	"context"
	"time"

	"boilerplate/internal/cryptox"
	"boilerplate/internal/token"

	"github.com/google/uuid"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// 署名付きトークンの発行と検証（token.Issuerが満たす）
type TokenIssuer interface {
	IssueAccess(id token.Identity) (string, error)
	IssueRefresh(id token.Identity) (string, error)
	VerifyRefresh(raw string) (token.Identity, error)
}

// 単一セッション用のキャッシュ（cache.SessionCacheが満たす）。失敗は返さない。
type SessionStore interface {
	Store(ctx context.Context, userID, tok string, typ token.Type, ttl time.Duration) (string, bool)
	Delete(ctx context.Context, userID string, typ token.Type)
}

// 電話番号の暗号化（cryptox.Sealerが満たす）
type FieldSealer interface {
	Seal(plain string) (cryptox.Payload, error)
	Open(p cryptox.Payload) (string, error)
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
