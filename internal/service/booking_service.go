package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/jobs"
	"github.com/podworks/pod-access-service/internal/observability"
	"github.com/podworks/pod-access-service/internal/payments"
	"github.com/podworks/pod-access-service/internal/repository"
	"github.com/podworks/pod-access-service/internal/security"
)

var (
	// ErrSetupIntentNotSucceeded means the customer's payment method was
	// never confirmed, so no session may be created.
	ErrSetupIntentNotSucceeded = errors.New("setup intent has not succeeded")
	// ErrMalformedPayload means a verified token was missing one of the
	// booking claims it was issued with.
	ErrMalformedPayload = errors.New("malformed token payload")
)

// SetupIntentResult pairs the gateway client secret the frontend needs
// to confirm the payment method with the provisioning token that
// authorises the follow-up finalize call.
type SetupIntentResult struct {
	ClientSecret      string
	ProvisioningToken string
}

// BookingService owns the booking lifecycle: creating setup intents,
// finalizing paid bookings into sessions with deferred provisioning,
// and ending sessions with a charge and deferred cleanup.
type BookingService struct {
	sessions      repository.SessionRepository
	provisions    repository.ProvisioningRepository
	pods          repository.PodRepository
	gateway       payments.Gateway
	tokens        *security.TokenManager
	scheduler     jobs.Scheduler
	provisioner   *ProvisionService
	deprovisioner *DeprovisionService
	staticCodes   bool
	promoPricing  bool
	logger        *slog.Logger
	now           func() time.Time
}

type BookingServiceParams struct {
	Sessions      repository.SessionRepository
	Provisions    repository.ProvisioningRepository
	Pods          repository.PodRepository
	Gateway       payments.Gateway
	Tokens        *security.TokenManager
	Scheduler     jobs.Scheduler
	Provisioner   *ProvisionService
	Deprovisioner *DeprovisionService
	StaticCodes   bool
	PromoPricing  bool
	Logger        *slog.Logger
}

func NewBookingService(p BookingServiceParams) *BookingService {
	return &BookingService{
		sessions:      p.Sessions,
		provisions:    p.Provisions,
		pods:          p.Pods,
		gateway:       p.Gateway,
		tokens:        p.Tokens,
		scheduler:     p.Scheduler,
		provisioner:   p.Provisioner,
		deprovisioner: p.Deprovisioner,
		staticCodes:   p.StaticCodes,
		promoPricing:  p.PromoPricing,
		logger:        p.Logger,
		now:           time.Now,
	}
}

// CreateSetupIntent opens a booking for the pod. The returned
// provisioning token binds the gateway setup intent, the pod and a
// pre-minted provisioning id together for the finalize step.
func (s *BookingService) CreateSetupIntent(ctx context.Context, podID string) (*SetupIntentResult, error) {
	if _, err := s.pods.FindByID(podID); err != nil {
		return nil, fmt.Errorf("create setup intent: %w", err)
	}

	intent, err := s.gateway.CreateSetupIntent(ctx, podID)
	if err != nil {
		return nil, fmt.Errorf("create setup intent: %w", err)
	}

	token, err := s.tokens.Issue(map[string]any{
		"setup_intent_id": intent.ID,
		"pod_id":          podID,
		"provisioning_id": uuid.NewString(),
	}, security.ScopeProvisioning)
	if err != nil {
		return nil, fmt.Errorf("issue provisioning token: %w", err)
	}

	return &SetupIntentResult{ClientSecret: intent.ClientSecret, ProvisioningToken: token}, nil
}

// FinalizeBooking turns a confirmed setup intent into a session. The
// payload is a verified provisioning-token payload. Finalize is
// idempotent on the setup intent: a repeat call returns a fresh session
// token for the existing session without creating anything.
func (s *BookingService) FinalizeBooking(ctx context.Context, payload map[string]any) (string, error) {
	setupIntentID, err := payloadString(payload, "setup_intent_id")
	if err != nil {
		return "", err
	}
	podID, err := payloadString(payload, "pod_id")
	if err != nil {
		return "", err
	}
	provisioningID, err := payloadString(payload, "provisioning_id")
	if err != nil {
		return "", err
	}

	intent, err := s.gateway.GetSetupIntent(ctx, setupIntentID)
	if err != nil {
		return "", fmt.Errorf("fetch setup intent %s: %w", setupIntentID, err)
	}
	if intent.Status != payments.SetupIntentSucceeded {
		return "", ErrSetupIntentNotSucceeded
	}

	existing, err := s.sessions.FindBySetupIntentID(setupIntentID)
	if err == nil {
		s.logger.InfoContext(ctx, "booking already finalized",
			slog.String("setup_intent_id", setupIntentID),
			slog.String("session_id", existing.ID))
		return s.sessionToken(existing.ID)
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return "", fmt.Errorf("look up setup intent %s: %w", setupIntentID, err)
	}

	session, err := domain.NewSession(domain.NewSessionParams{
		PodID:                  podID,
		CustomerEmail:          intent.CustomerEmail,
		StartTime:              s.now(),
		GatewayCustomerID:      intent.CustomerID,
		GatewayPaymentMethodID: intent.PaymentMethodID,
		SetupIntentID:          setupIntentID,
	})
	if err != nil {
		return "", fmt.Errorf("finalize booking: %w", err)
	}
	if err := s.sessions.Create(session); err != nil {
		return "", err
	}
	prov, err := domain.NewProvisioning(provisioningID, session.ID)
	if err != nil {
		return "", fmt.Errorf("finalize booking: %w", err)
	}
	if err := s.provisions.Create(prov); err != nil {
		return "", err
	}
	if err := s.pods.SetInUse(podID, true); err != nil {
		return "", err
	}

	token, err := s.sessionToken(session.ID)
	if err != nil {
		return "", err
	}

	args := ProvisionArgs{SessionID: session.ID, SessionToken: token, Static: s.staticCodes}
	s.scheduler.Submit("provision", session.ID, func(ctx context.Context) error {
		return s.provisioner.Run(ctx, args)
	})

	s.logger.InfoContext(ctx, "booking finalized",
		slog.String("session_id", session.ID),
		slog.String("pod_id", podID))
	return token, nil
}

// EndSession closes the session, charges the customer for the elapsed
// time and queues cleanup of the access code and pod.
func (s *BookingService) EndSession(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(sessionID)
	if err != nil {
		return err
	}
	if session.Closed() {
		return repository.ErrSessionAlreadyClosed
	}
	pod, err := s.pods.FindByID(session.PodID)
	if err != nil {
		return err
	}

	endedAt := s.now()
	ended := *session
	ended.EndTime = &endedAt
	cost := SessionCost(pod, &ended, s.promoPricing, endedAt)

	if pence := CostInPence(cost); pence > 0 {
		err := s.gateway.Charge(ctx, payments.ChargeParams{
			CustomerID:      session.GatewayCustomerID,
			PaymentMethodID: session.GatewayPaymentMethodID,
			Amount:          pence,
			Currency:        "gbp",
		})
		if err != nil {
			observability.RecordBillingCharge("failed")
			return fmt.Errorf("charge session %s: %w", sessionID, err)
		}
		observability.RecordBillingCharge("success")
	}

	if err := s.sessions.Close(sessionID, endedAt); err != nil {
		return err
	}

	args := DeprovisionArgs{PodID: session.PodID, Static: s.staticCodes}
	if session.AccessCodeID != nil {
		args.AccessCodeID = *session.AccessCodeID
	}
	s.scheduler.Submit("deprovision", session.ID, func(ctx context.Context) error {
		return s.deprovisioner.Run(ctx, args)
	})

	s.logger.InfoContext(ctx, "session ended",
		slog.String("session_id", sessionID),
		slog.Float64("cost", cost))
	return nil
}

func (s *BookingService) sessionToken(sessionID string) (string, error) {
	token, err := s.tokens.Issue(map[string]any{"session_id": sessionID}, security.ScopeSession)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return token, nil
}

func payloadString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedPayload, key)
	}
	return v, nil
}
