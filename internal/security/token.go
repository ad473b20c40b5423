package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/podworks/pod-access-service/internal/observability"
)

// Scope is a token's declared purpose. A provisioning token is issued
// before identity and payment are fully settled and must never be
// accepted as a session credential, so verification is always scoped.
type Scope string

const (
	ScopeProvisioning Scope = "provisioning"
	ScopeSession      Scope = "session"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknownScope = errors.New("unknown token scope")
)

// Lifetime returns the fixed expiry window for a scope.
func (s Scope) Lifetime() (time.Duration, error) {
	switch s {
	case ScopeProvisioning:
		return 10 * time.Minute, nil
	case ScopeSession:
		return 3 * time.Hour, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

type TokenManager struct {
	secret []byte
	now    func() time.Time
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

// Issue embeds payload under a claim keyed by the scope name and signs it
// with an absolute expiry derived from the scope's fixed lifetime.
func (m *TokenManager) Issue(payload map[string]any, scope Scope) (string, error) {
	ttl, err := scope.Lifetime()
	if err != nil {
		return "", err
	}
	now := m.now().UTC()
	claims := jwt.MapClaims{
		"scope":       string(scope),
		string(scope): payload,
		"iat":         jwt.NewNumericDate(now),
		"exp":         jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, expiry and scope, and returns only the
// sub-object stored under the scope name. Data issued for one scope is
// never visible through verification under another.
func (m *TokenManager) Verify(raw string, scope Scope) (map[string]any, error) {
	if _, err := scope.Lifetime(); err != nil {
		return nil, err
	}
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			observability.RecordTokenVerification(string(scope), "expired")
			return nil, ErrTokenExpired
		}
		observability.RecordTokenVerification(string(scope), "invalid")
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		observability.RecordTokenVerification(string(scope), "invalid")
		return nil, ErrInvalidToken
	}
	stored, ok := claims["scope"].(string)
	if !ok || stored != string(scope) {
		observability.RecordTokenVerification(string(scope), "scope_mismatch")
		return nil, ErrInvalidToken
	}
	payload, ok := claims[string(scope)].(map[string]any)
	if !ok {
		observability.RecordTokenVerification(string(scope), "invalid")
		return nil, ErrInvalidToken
	}
	observability.RecordTokenVerification(string(scope), "success")
	return payload, nil
}
