// Package cryptox は保存する個人情報（電話番号など）の暗号化。
// AES-256-GCM、payloadは base64(nonce | tag | ciphertext)。
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

const (
	Version   = 1
	nonceSize = 12
	tagSize   = 16
)

var (
	ErrMissingKey         = errors.New("DATA_ENCRYPTION_KEY is required for encryption")
	ErrInvalidKey         = errors.New("DATA_ENCRYPTION_KEY must represent 32 bytes (256 bits)")
	ErrUnsupportedVersion = errors.New("unsupported encryption payload version")
	ErrMalformedPayload   = errors.New("malformed encryption payload")
)

var hexKey = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

type Payload struct {
	Version    int    `json:"version"`
	Ciphertext string `json:"ciphertext"`
}

type Sealer struct {
	aead cipher.AEAD
}

// NewSealerは64桁hexかbase64の32バイト鍵を受け取る。
func NewSealer(rawKey string) (*Sealer, error) {
	if rawKey == "" {
		return nil, ErrMissingKey
	}

	var key []byte
	var err error
	if hexKey.MatchString(rawKey) {
		key, err = hex.DecodeString(rawKey)
	} else {
		key, err = base64.StdEncoding.DecodeString(rawKey)
	}
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plain string) (Payload, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Payload{}, err
	}

	// GoのSealは ciphertext|tag なので tag を前に並べ替える
	sealed := s.aead.Seal(nil, nonce, []byte(plain), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return Payload{Version: Version, Ciphertext: base64.StdEncoding.EncodeToString(out)}, nil
}

func (s *Sealer) Open(p Payload) (string, error) {
	if p.Version != Version {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	raw, err := base64.StdEncoding.DecodeString(p.Ciphertext)
	if err != nil || len(raw) < nonceSize+tagSize {
		return "", ErrMalformedPayload
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrMalformedPayload
	}
	return string(plain), nil
}
