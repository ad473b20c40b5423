package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
)

func newProvisionFixture(t *testing.T) (*ProvisionService, *memSessionRepo, *memProvisioningRepo, *fakeProvider, *fakeNotifier) {
	t.Helper()

	pods := newMemPodRepo(&domain.Pod{
		ID:       "pod-1",
		Name:     "Riverside Pod",
		Address:  "1 Quay Street",
		DeviceID: "dev-1",
	})
	sessions := newMemSessionRepo()
	provisions := newMemProvisioningRepo()
	provider := &fakeProvider{codeID: "ac-1", code: "43210"}
	notifier := &fakeNotifier{}

	svc := NewProvisionService(
		sessions, provisions, pods,
		CodeProviders{Live: provider, Static: provider},
		notifier, slog.New(slog.DiscardHandler),
	)
	return svc, sessions, provisions, provider, notifier
}

func seedPendingSession(t *testing.T, sessions *memSessionRepo, provisions *memProvisioningRepo) *domain.Session {
	t.Helper()

	session, err := domain.NewSession(domain.NewSessionParams{
		PodID:         "pod-1",
		CustomerEmail: "customer@example.com",
		StartTime:     time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC),
		SetupIntentID: "si_1",
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := sessions.Create(session); err != nil {
		t.Fatalf("Create session error = %v", err)
	}
	prov, err := domain.NewProvisioning("", session.ID)
	if err != nil {
		t.Fatalf("NewProvisioning() error = %v", err)
	}
	if err := provisions.Create(prov); err != nil {
		t.Fatalf("Create provisioning error = %v", err)
	}
	return session
}

func TestProvisionRunSuccess(t *testing.T) {
	svc, sessions, provisions, provider, notifier := newProvisionFixture(t)
	session := seedPendingSession(t, sessions, provisions)

	args := ProvisionArgs{SessionID: session.ID, SessionToken: "tok-1"}
	if err := svc.Run(context.Background(), args); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stored, err := sessions.FindByID(session.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.AccessCodeID == nil || *stored.AccessCodeID != "ac-1" {
		t.Fatalf("access code id = %v, want ac-1", stored.AccessCodeID)
	}

	prov, err := provisions.FindBySessionID(session.ID)
	if err != nil {
		t.Fatalf("FindBySessionID() error = %v", err)
	}
	if prov.Status != domain.ProvisionReady {
		t.Fatalf("status = %q, want ready", prov.Status)
	}
	if prov.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", prov.Attempts)
	}
	if prov.LastReadyAt == nil {
		t.Fatal("expected last ready timestamp")
	}

	if provider.allocated != 1 {
		t.Fatalf("allocated = %d, want 1", provider.allocated)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("notifications sent = %d, want 1", len(notifier.sent))
	}
	sent := notifier.sent[0]
	if sent.recipient != "customer@example.com" {
		t.Fatalf("recipient = %q", sent.recipient)
	}
	if sent.details.AccessCode != "43210" {
		t.Fatalf("access code = %q, want 43210", sent.details.AccessCode)
	}
	if sent.details.SessionToken != "tok-1" {
		t.Fatalf("session token = %q, want tok-1", sent.details.SessionToken)
	}
}

func TestProvisionRunIdempotentAfterSuccess(t *testing.T) {
	svc, sessions, provisions, provider, notifier := newProvisionFixture(t)
	session := seedPendingSession(t, sessions, provisions)

	args := ProvisionArgs{SessionID: session.ID, SessionToken: "tok-1"}
	if err := svc.Run(context.Background(), args); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := svc.Run(context.Background(), args); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if provider.allocated != 1 {
		t.Fatalf("allocated = %d after re-run, want 1", provider.allocated)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("notifications sent = %d after re-run, want 1", len(notifier.sent))
	}

	prov, err := provisions.FindBySessionID(session.ID)
	if err != nil {
		t.Fatalf("FindBySessionID() error = %v", err)
	}
	if prov.Status != domain.ProvisionReady {
		t.Fatalf("status = %q, want ready", prov.Status)
	}
	if prov.Attempts != 1 {
		t.Fatalf("attempts = %d after re-run, want 1", prov.Attempts)
	}
}

func TestProvisionRunAllocationFailure(t *testing.T) {
	svc, sessions, provisions, provider, notifier := newProvisionFixture(t)
	session := seedPendingSession(t, sessions, provisions)
	provider.allocateErr = errors.New("device offline")

	err := svc.Run(context.Background(), ProvisionArgs{SessionID: session.ID})
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("Run() error = %v, want ErrProvisioningFailed", err)
	}

	stored, _ := sessions.FindByID(session.ID)
	if stored.AccessCodeID != nil {
		t.Fatalf("access code id = %v, want nil", *stored.AccessCodeID)
	}

	prov, _ := provisions.FindBySessionID(session.ID)
	if prov.Status != domain.ProvisionFailed {
		t.Fatalf("status = %q, want failed", prov.Status)
	}
	if prov.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", prov.Attempts)
	}
	if prov.LastFailedAt == nil {
		t.Fatal("expected last failed timestamp")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("notifications sent = %d, want 0", len(notifier.sent))
	}
}

func TestProvisionRunRetryAfterFailure(t *testing.T) {
	svc, sessions, provisions, provider, _ := newProvisionFixture(t)
	session := seedPendingSession(t, sessions, provisions)

	provider.allocateErr = errors.New("device offline")
	if err := svc.Run(context.Background(), ProvisionArgs{SessionID: session.ID}); err == nil {
		t.Fatal("expected first attempt to fail")
	}

	provider.mu.Lock()
	provider.allocateErr = nil
	provider.mu.Unlock()
	if err := svc.Run(context.Background(), ProvisionArgs{SessionID: session.ID}); err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}

	prov, _ := provisions.FindBySessionID(session.ID)
	if prov.Status != domain.ProvisionReady {
		t.Fatalf("status = %q, want ready", prov.Status)
	}
	if prov.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", prov.Attempts)
	}
	if prov.LastReadyAt == nil || prov.LastFailedAt == nil {
		t.Fatal("expected both outcome timestamps after failure then success")
	}
}

func TestProvisionRunNotificationFailure(t *testing.T) {
	svc, sessions, provisions, _, notifier := newProvisionFixture(t)
	session := seedPendingSession(t, sessions, provisions)
	notifier.sendErr = errors.New("smtp down")

	err := svc.Run(context.Background(), ProvisionArgs{SessionID: session.ID})
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("Run() error = %v, want ErrProvisioningFailed", err)
	}

	// the code was allocated, so a retry confirms ready without resending
	notifier.mu.Lock()
	notifier.sendErr = nil
	notifier.mu.Unlock()
	if err := svc.Run(context.Background(), ProvisionArgs{SessionID: session.ID}); err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	prov, _ := provisions.FindBySessionID(session.ID)
	if prov.Status != domain.ProvisionReady {
		t.Fatalf("status = %q, want ready", prov.Status)
	}
}
