// Package apikey は x-api-key ヘッダーの署名付きキー。
// キーは base64("userKey:timestampMillis:hex(HMAC-SHA256(secret, "userKey:timestampMillis")))")。
package apikey

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const MaxAge = 5 * time.Minute

var (
	ErrMissing          = errors.New("api key not found")
	ErrMalformed        = errors.New("invalid api key format")
	ErrUnknownUser      = errors.New("invalid identity")
	ErrExpired          = errors.New("request expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNotConfigured    = errors.New("api key verification is not configured")
)

func sign(userKey, secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userKey + ":" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}

// Generateはnow時点のキーを作る
func Generate(userKey, secret string, now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	payload := userKey + ":" + ts + ":" + sign(userKey, secret, ts)
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

type Verifier struct {
	userKey string
	secret  string
	now     func() time.Time
}

func NewVerifier(userKey, secret string) *Verifier {
	return &Verifier{userKey: userKey, secret: secret, now: time.Now}
}

// Verifyはどの失敗も呼び出し側では401にする
func (v *Verifier) Verify(apiKey string) error {
	if v.userKey == "" || v.secret == "" {
		return ErrNotConfigured
	}
	if apiKey == "" {
		return ErrMissing
	}

	decoded, err := base64.StdEncoding.DecodeString(apiKey)
	if err != nil {
		return ErrMalformed
	}
	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ErrMalformed
	}
	userKey, ts, sig := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(userKey), []byte(v.userKey)) {
		return ErrUnknownUser
	}

	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformed
	}
	diff := v.now().Sub(time.UnixMilli(millis))
	if diff < 0 {
		diff = -diff
	}
	if diff > MaxAge {
		return ErrExpired
	}

	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(sign(userKey, v.secret, ts))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}
