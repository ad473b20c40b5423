package security

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerifyReturnsScopedPayloadOnly(t *testing.T) {
	mgr := NewTokenManager("test-secret")

	token, err := mgr.Issue(map[string]any{
		"setup_intent_id": "si_123",
		"pod_id":          "pod-1",
		"provisioning_id": "prov-1",
	}, ScopeProvisioning)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	payload, err := mgr.Verify(token, ScopeProvisioning)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if payload["setup_intent_id"] != "si_123" || payload["pod_id"] != "pod-1" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if _, leaked := payload["scope"]; leaked {
		t.Fatal("envelope claims must not leak into the payload")
	}
}

func TestVerifyRejectsCrossScope(t *testing.T) {
	mgr := NewTokenManager("test-secret")

	token, err := mgr.Issue(map[string]any{"session_id": "sess-1"}, ScopeSession)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := mgr.Verify(token, ScopeProvisioning); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for cross-scope verify, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a").Issue(map[string]any{"session_id": "s"}, ScopeSession)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenManager("secret-b").Verify(token, ScopeSession); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	mgr := NewTokenManager("test-secret")
	// Issue from a clock far enough in the past that the 10 minute
	// provisioning lifetime has already elapsed.
	mgr.now = func() time.Time { return time.Now().Add(-11 * time.Minute) }

	token, err := mgr.Issue(map[string]any{"pod_id": "pod-1"}, ScopeProvisioning)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := mgr.Verify(token, ScopeProvisioning); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifySucceedsBeforeExpiry(t *testing.T) {
	mgr := NewTokenManager("test-secret")
	mgr.now = func() time.Time { return time.Now().Add(-9 * time.Minute) }

	token, err := mgr.Issue(map[string]any{"pod_id": "pod-1"}, ScopeProvisioning)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	payload, err := mgr.Verify(token, ScopeProvisioning)
	if err != nil {
		t.Fatalf("verify just before expiry: %v", err)
	}
	if payload["pod_id"] != "pod-1" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestUnknownScope(t *testing.T) {
	mgr := NewTokenManager("test-secret")
	if _, err := mgr.Issue(map[string]any{}, Scope("admin")); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope on issue, got %v", err)
	}
	if _, err := mgr.Verify("whatever", Scope("admin")); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope on verify, got %v", err)
	}
}
