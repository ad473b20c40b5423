package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/repository"
)

// ProvisioningStatus is what a customer polling after checkout sees.
// AccessCode is only present once provisioning is ready.
type ProvisioningStatus struct {
	Status     domain.ProvisionStatus
	AccessCode string
}

// SessionView is the customer-facing shape of a session. AccessCode is
// cleared once the session has ended.
type SessionView struct {
	SessionID  string
	StartTime  time.Time
	EndTime    *time.Time
	AccessCode string
	PodName    string
	Address    string
}

// PodView is the public shape of a pod for the booking page.
type PodView struct {
	ID             string
	Name           string
	Address        string
	PricePerMinute float64
	InUse          bool
}

// SessionService serves the customer-facing reads: provisioning polls,
// session details, live cost previews and pod listings.
type SessionService struct {
	sessions     repository.SessionRepository
	provisions   repository.ProvisioningRepository
	pods         repository.PodRepository
	providers    CodeProviders
	staticCodes  bool
	promoPricing bool
	logger       *slog.Logger
	now          func() time.Time
}

func NewSessionService(
	sessions repository.SessionRepository,
	provisions repository.ProvisioningRepository,
	pods repository.PodRepository,
	providers CodeProviders,
	staticCodes bool,
	promoPricing bool,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		sessions:     sessions,
		provisions:   provisions,
		pods:         pods,
		providers:    providers,
		staticCodes:  staticCodes,
		promoPricing: promoPricing,
		logger:       logger,
		now:          time.Now,
	}
}

// ProvisioningStatus reports the state of the session's provisioning
// record, resolving the human-readable code once it is ready.
func (s *SessionService) ProvisioningStatus(ctx context.Context, sessionID string) (*ProvisioningStatus, error) {
	prov, err := s.provisions.FindBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	out := &ProvisioningStatus{Status: prov.Status}
	if prov.Status != domain.ProvisionReady {
		return out, nil
	}

	session, err := s.sessions.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.AccessCodeID == nil {
		return nil, fmt.Errorf("session %s ready without access code", sessionID)
	}
	code, err := s.providers.Pick(s.staticCodes).Read(ctx, *session.AccessCodeID)
	if err != nil {
		return nil, fmt.Errorf("read access code for session %s: %w", sessionID, err)
	}
	out.AccessCode = code
	return out, nil
}

// Session returns the customer view of a session.
func (s *SessionService) Session(ctx context.Context, sessionID string) (*SessionView, error) {
	session, err := s.sessions.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	pod, err := s.pods.FindByID(session.PodID)
	if err != nil {
		return nil, err
	}

	view := &SessionView{
		SessionID: session.ID,
		StartTime: session.StartTime,
		EndTime:   session.EndTime,
		PodName:   pod.Name,
		Address:   pod.Address,
	}
	if !session.Closed() && session.AccessCodeID != nil {
		code, err := s.providers.Pick(s.staticCodes).Read(ctx, *session.AccessCodeID)
		if err != nil {
			return nil, fmt.Errorf("read access code for session %s: %w", sessionID, err)
		}
		view.AccessCode = code
	}
	return view, nil
}

// CostPreview returns the price of the session so far. Closed sessions
// return their final cost.
func (s *SessionService) CostPreview(ctx context.Context, sessionID string) (float64, error) {
	session, err := s.sessions.FindByID(sessionID)
	if err != nil {
		return 0, err
	}
	pod, err := s.pods.FindByID(session.PodID)
	if err != nil {
		return 0, err
	}
	return SessionCost(pod, session, s.promoPricing, s.now()), nil
}

// Complete reports whether the session has an end time.
func (s *SessionService) Complete(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.sessions.FindByID(sessionID)
	if err != nil {
		return false, err
	}
	return session.Closed(), nil
}

// Pod returns the public details of a pod.
func (s *SessionService) Pod(ctx context.Context, podID string) (*PodView, error) {
	pod, err := s.pods.FindByID(podID)
	if err != nil {
		return nil, err
	}
	return &PodView{
		ID:             pod.ID,
		Name:           pod.Name,
		Address:        pod.Address,
		PricePerMinute: pod.PricePerMinute,
		InUse:          pod.InUse,
	}, nil
}
