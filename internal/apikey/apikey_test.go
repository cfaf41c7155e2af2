package apikey

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier("client-a", "s3cret")
	v.now = func() time.Time { return now }

	key := Generate("client-a", "s3cret", now)
	assert.NoError(t, v.Verify(key))

	// 5分以内の時計ずれは許す
	assert.NoError(t, v.Verify(Generate("client-a", "s3cret", now.Add(-4*time.Minute))))
	assert.NoError(t, v.Verify(Generate("client-a", "s3cret", now.Add(4*time.Minute))))
}

func TestVerify_Failures(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier("client-a", "s3cret")
	v.now = func() time.Time { return now }

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"missing", "", ErrMissing},
		{"not base64", "%%%", ErrMalformed},
		{"two parts", base64.StdEncoding.EncodeToString([]byte("client-a:123")), ErrMalformed},
		{"bad timestamp", base64.StdEncoding.EncodeToString([]byte("client-a:abc:00")), ErrMalformed},
		{"wrong user", Generate("client-b", "s3cret", now), ErrUnknownUser},
		{"expired", Generate("client-a", "s3cret", now.Add(-6*time.Minute)), ErrExpired},
		{"wrong secret", Generate("client-a", "other", now), ErrInvalidSignature},
		{"non-hex signature", base64.StdEncoding.EncodeToString([]byte("client-a:" + "1777636800000" + ":zz")), ErrInvalidSignature},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, v.Verify(tc.key), tc.want)
		})
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	v := NewVerifier("", "")
	assert.ErrorIs(t, v.Verify("anything"), ErrNotConfigured)
}
