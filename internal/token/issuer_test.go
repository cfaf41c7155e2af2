package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var alice = Identity{ID: "u-1", Email: "alice@example.com", Role: "USER"}

func TestIssueVerify_RoundTrip(t *testing.T) {
	iss := NewIssuer("access-secret", "refresh-secret")

	at, err := iss.IssueAccess(alice)
	require.NoError(t, err)
	got, err := iss.VerifyAccess(at)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	rt, err := iss.IssueRefresh(alice)
	require.NoError(t, err)
	got, err = iss.VerifyRefresh(rt)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

// 別の秘密鍵では検証できない
func TestVerify_WrongSecret(t *testing.T) {
	iss := NewIssuer("access-secret", "refresh-secret")

	at, err := iss.IssueAccess(alice)
	require.NoError(t, err)

	_, err = iss.VerifyRefresh(at)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewIssuer("other", "other")
	_, err = other.VerifyAccess(at)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssue_MissingSecret(t *testing.T) {
	iss := NewIssuer("", "")

	_, err := iss.IssueAccess(alice)
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = iss.IssueRefresh(alice)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestVerify_Expired(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iss := NewIssuer("a", "r").WithClock(fixedClock{start})

	at, err := iss.IssueAccess(alice)
	require.NoError(t, err)

	// 24h以内はOK
	_, err = iss.WithClock(fixedClock{start.Add(23 * time.Hour)}).VerifyAccess(at)
	require.NoError(t, err)

	_, err = iss.WithClock(fixedClock{start.Add(AccessTTL + time.Minute)}).VerifyAccess(at)
	assert.ErrorIs(t, err, ErrInvalidToken)

	rt, err := iss.IssueRefresh(alice)
	require.NoError(t, err)
	_, err = iss.WithClock(fixedClock{start.Add(6 * 24 * time.Hour)}).VerifyRefresh(rt)
	require.NoError(t, err)
	_, err = iss.WithClock(fixedClock{start.Add(RefreshTTL + time.Minute)}).VerifyRefresh(rt)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	iss := NewIssuer("a", "r")
	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := iss.VerifyAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

// HS256以外（none等）は拒否
func TestVerify_RejectsOtherAlg(t *testing.T) {
	iss := NewIssuer("a", "r")
	claims := Claims{
		Identity: alice,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("a"))
	require.NoError(t, err)

	_, err = iss.VerifyAccess(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// 同じ時刻に2回発行しても別トークン
func TestIssue_UniquePerCall(t *testing.T) {
	iss := NewIssuer("a", "r").WithClock(fixedClock{time.Now()})
	t1, err := iss.IssueRefresh(alice)
	require.NoError(t, err)
	t2, err := iss.IssueRefresh(alice)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestType_TTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, TypeAccess.TTL())
	assert.Equal(t, 7*24*time.Hour, TypeRefresh.TTL())
}
