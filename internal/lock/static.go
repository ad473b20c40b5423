package lock

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// defaultStaticCodes are pre-programmed on pods that have no live lock
// integration. They are reused across sessions, never revoked.
var defaultStaticCodes = []int{14231, 33421, 21443, 14243, 34211, 12344}

// StaticProvider serves codes from a fixed pool. Allocate seals the
// chosen code with an AEAD so the stored access_code_id never reveals
// the door code; Read opens it back. Supports environments without a
// live lock integration behind the same CodeProvider interface.
type StaticProvider struct {
	codes []int
	key   []byte
}

func NewStaticProvider(b64Key string, codes []int) (*StaticProvider, error) {
	if b64Key == "" {
		return nil, errors.New("static code key is required")
	}
	key, err := base64.URLEncoding.DecodeString(b64Key)
	if err != nil {
		return nil, fmt.Errorf("decode static code key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("static code key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	if len(codes) == 0 {
		codes = defaultStaticCodes
	}
	return &StaticProvider{codes: codes, key: key}, nil
}

func (p *StaticProvider) Allocate(ctx context.Context, startsAt time.Time, deviceID string) (string, error) {
	code := p.codes[mathrand.IntN(len(p.codes))]
	return p.seal(fmt.Sprintf("%05d", code))
}

func (p *StaticProvider) Read(ctx context.Context, codeID string) (string, error) {
	return p.open(codeID)
}

// Revoke is a no-op: pool codes are shared, not leased.
func (p *StaticProvider) Revoke(ctx context.Context, codeID string) error { return nil }

func (p *StaticProvider) Reusable() bool { return true }

func (p *StaticProvider) seal(code string) (string, error) {
	aead, err := chacha20poly1305.New(p.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(code), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (p *StaticProvider) open(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decode access code token: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSize {
		return "", errors.New("access code token too short")
	}
	aead, err := chacha20poly1305.New(p.key)
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, raw[:chacha20poly1305.NonceSize], raw[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("open access code token: %w", err)
	}
	return string(plain), nil
}
