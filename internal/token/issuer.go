// Package token はaccess/refreshの2種類の署名付きトークンを発行・検証する。
// 状態は持たない。秘密鍵は設定から渡す。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTTL  = 24 * time.Hour
	RefreshTTL = 7 * 24 * time.Hour
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// TTLはキャッシュの有効期限にも使う
func (t Type) TTL() time.Duration {
	if t == TypeRefresh {
		return RefreshTTL
	}
	return AccessTTL
}

var (
	// 署名鍵が未設定（設定ミス。500扱い）
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// 署名不一致・期限切れ・壊れたトークン（区別しない）
	ErrInvalidToken = errors.New("invalid or expired token")
)

// トークンに載せるユーザー情報
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Claims struct {
	Identity
	jwt.RegisteredClaims
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	clock         Clock
}

func NewIssuer(accessSecret, refreshSecret string) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		clock:         systemClock{},
	}
}

// テスト用に時計を差し替える
func (i *Issuer) WithClock(c Clock) *Issuer {
	cp := *i
	cp.clock = c
	return &cp
}

func (i *Issuer) IssueAccess(id Identity) (string, error) {
	return i.issue(id, i.accessSecret, AccessTTL)
}

func (i *Issuer) IssueRefresh(id Identity) (string, error) {
	return i.issue(id, i.refreshSecret, RefreshTTL)
}

func (i *Issuer) VerifyAccess(raw string) (Identity, error) {
	return i.verify(raw, i.accessSecret)
}

func (i *Issuer) VerifyRefresh(raw string) (Identity, error) {
	return i.verify(raw, i.refreshSecret)
}

func (i *Issuer) issue(id Identity, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}

	now := i.clock.Now()
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			ID:        uuid.NewString(), // 同じ秒に2回発行しても別の文字列にする
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) verify(raw string, secret []byte) (Identity, error) {
	if len(secret) == 0 {
		return Identity{}, ErrMissingSecret
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Identity.ID == "" {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity, nil
}
