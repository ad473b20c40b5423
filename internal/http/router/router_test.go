package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/http/handler"
	"github.com/podworks/pod-access-service/internal/repository"
	"github.com/podworks/pod-access-service/internal/security"
	"github.com/podworks/pod-access-service/internal/service"
)

type stubBooking struct {
	finalizedWith map[string]any
	endedSession  string
}

func (s *stubBooking) CreateSetupIntent(ctx context.Context, podID string) (*service.SetupIntentResult, error) {
	if podID != "pod-1" {
		return nil, repository.ErrPodNotFound
	}
	return &service.SetupIntentResult{ClientSecret: "secret", ProvisioningToken: "tok"}, nil
}

func (s *stubBooking) FinalizeBooking(ctx context.Context, payload map[string]any) (string, error) {
	s.finalizedWith = payload
	return "session-token", nil
}

func (s *stubBooking) EndSession(ctx context.Context, sessionID string) error {
	s.endedSession = sessionID
	return nil
}

type stubReader struct{}

func (stubReader) ProvisioningStatus(ctx context.Context, sessionID string) (*service.ProvisioningStatus, error) {
	return &service.ProvisioningStatus{Status: domain.ProvisionReady, AccessCode: "43210"}, nil
}

func (stubReader) Session(ctx context.Context, sessionID string) (*service.SessionView, error) {
	return &service.SessionView{SessionID: sessionID, StartTime: time.Now(), PodName: "Riverside Pod"}, nil
}

func (stubReader) CostPreview(ctx context.Context, sessionID string) (float64, error) {
	return 5.00, nil
}

func (stubReader) Complete(ctx context.Context, sessionID string) (bool, error) {
	return false, nil
}

func (stubReader) Pod(ctx context.Context, podID string) (*service.PodView, error) {
	if podID != "pod-1" {
		return nil, repository.ErrPodNotFound
	}
	return &service.PodView{ID: podID, Name: "Riverside Pod", PricePerMinute: 0.50}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *security.TokenManager, *stubBooking) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	tokens := security.NewTokenManager("test-secret")
	booking := &stubBooking{}

	srv := httptest.NewServer(NewRouter(Dependencies{
		BookingHandler: handler.NewBookingHandler(booking, logger),
		SessionHandler: handler.NewSessionHandler(stubReader{}, logger),
		Tokens:         tokens,
	}))
	t.Cleanup(srv.Close)
	return srv, tokens, booking
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := get(t, srv.URL+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestSetupIntentEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/setup-intent", "application/json",
		strings.NewReader(`{"pod_id":"pod-1"}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data["client_secret"] != "secret" || body.Data["provisioning_token"] != "tok" {
		t.Fatalf("data = %v", body.Data)
	}
}

func TestFinalizeRequiresProvisioningToken(t *testing.T) {
	srv, tokens, booking := newTestServer(t)

	// no token
	resp, err := http.Post(srv.URL+"/api/booking/finalize", "application/json", nil)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	// session-scoped token must be rejected too
	sessionToken, _ := tokens.Issue(map[string]any{"session_id": "sess-1"}, security.ScopeSession)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/booking/finalize", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("cross-scope status = %d, want 401", resp.StatusCode)
	}

	provToken, _ := tokens.Issue(map[string]any{
		"setup_intent_id": "si_1",
		"pod_id":          "pod-1",
		"provisioning_id": "prov-1",
	}, security.ScopeProvisioning)
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/booking/finalize", nil)
	req.Header.Set("Authorization", "Bearer "+provToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if booking.finalizedWith["setup_intent_id"] != "si_1" {
		t.Fatalf("finalize payload = %v", booking.finalizedWith)
	}
}

func TestSessionRoutesRequireSessionToken(t *testing.T) {
	srv, tokens, _ := newTestServer(t)

	paths := []string{
		"/api/provisioning-status",
		"/api/session",
		"/api/session/preview",
		"/api/session/complete",
	}
	for _, path := range paths {
		resp := get(t, srv.URL+path, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s unauthenticated status = %d, want 401", path, resp.StatusCode)
		}
	}

	token, err := tokens.Issue(map[string]any{"session_id": "sess-1"}, security.ScopeSession)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	for _, path := range paths {
		resp := get(t, srv.URL+path, token)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestEndSessionEndpoint(t *testing.T) {
	srv, tokens, booking := newTestServer(t)

	token, _ := tokens.Issue(map[string]any{"session_id": "sess-1"}, security.ScopeSession)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/session/end", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if booking.endedSession != "sess-1" {
		t.Fatalf("ended session = %q", booking.endedSession)
	}
}

func TestPodEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/pod?pod_id=pod-1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/api/pod?pod_id=pod-404", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/api/pod", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
