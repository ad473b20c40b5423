package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/lock"
	"github.com/podworks/pod-access-service/internal/notify"
	"github.com/podworks/pod-access-service/internal/observability"
	"github.com/podworks/pod-access-service/internal/repository"
)

// ErrProvisioningFailed wraps any error that left a provisioning record
// in the failed state.
var ErrProvisioningFailed = errors.New("provisioning failed")

// CodeProviders holds the two access-code backends. Pick selects one
// per session so live and static sessions can coexist in one process.
type CodeProviders struct {
	Live   lock.CodeProvider
	Static lock.CodeProvider
}

func (c CodeProviders) Pick(static bool) lock.CodeProvider {
	if static {
		return c.Static
	}
	return c.Live
}

// ProvisionArgs carries everything a deferred provisioning run needs.
// SessionToken is embedded in the access notification so the customer
// can reach their session page.
type ProvisionArgs struct {
	SessionID    string
	SessionToken string
	Static       bool
}

// ProvisionService drives a session's provisioning record from pending
// to a terminal state: it allocates an access code, records it on the
// session and emails the customer their access details.
type ProvisionService struct {
	sessions   repository.SessionRepository
	provisions repository.ProvisioningRepository
	pods       repository.PodRepository
	providers  CodeProviders
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

func NewProvisionService(
	sessions repository.SessionRepository,
	provisions repository.ProvisioningRepository,
	pods repository.PodRepository,
	providers CodeProviders,
	notifier notify.Notifier,
	logger *slog.Logger,
) *ProvisionService {
	return &ProvisionService{
		sessions:   sessions,
		provisions: provisions,
		pods:       pods,
		providers:  providers,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one provisioning attempt for the session. Re-running
// after a successful attempt is a no-op beyond confirming the ready
// status: the code is not reallocated and the email is not resent.
// Failed attempts leave the record failed with the attempt counted and
// return an error wrapping ErrProvisioningFailed.
func (s *ProvisionService) Run(ctx context.Context, args ProvisionArgs) error {
	session, err := s.sessions.FindByID(args.SessionID)
	if err != nil {
		return fmt.Errorf("provision session %s: %w", args.SessionID, err)
	}

	if session.AccessCodeID != nil {
		if err := s.provisions.SetStatusBySessionID(session.ID, domain.ProvisionReady); err != nil {
			return fmt.Errorf("provision session %s: confirm ready: %w", session.ID, err)
		}
		s.logger.InfoContext(ctx, "provisioning already complete",
			slog.String("session_id", session.ID),
			slog.String("access_code_id", *session.AccessCodeID))
		return nil
	}

	if err := s.provision(ctx, session, args); err != nil {
		s.markFailed(ctx, session.ID)
		return fmt.Errorf("provision session %s: %w", session.ID, errors.Join(ErrProvisioningFailed, err))
	}
	return nil
}

func (s *ProvisionService) provision(ctx context.Context, session *domain.Session, args ProvisionArgs) error {
	pod, err := s.pods.FindByID(session.PodID)
	if err != nil {
		return err
	}

	provider := s.providers.Pick(args.Static)
	codeID, err := provider.Allocate(ctx, session.StartTime, pod.DeviceID)
	if err != nil {
		return fmt.Errorf("allocate access code: %w", err)
	}

	if err := s.sessions.SetAccessCodeID(session.ID, codeID); err != nil {
		return err
	}
	if err := s.provisions.SetStatusBySessionID(session.ID, domain.ProvisionReady); err != nil {
		return err
	}
	if err := s.provisions.IncrementAttempts(session.ID, domain.ProvisionReady, s.now()); err != nil {
		return err
	}
	observability.RecordProvisioningAttempt("ready")

	code, err := provider.Read(ctx, codeID)
	if err != nil {
		return fmt.Errorf("read access code: %w", err)
	}

	details := notify.AccessDetails{
		PodName:      pod.Name,
		Address:      pod.Address,
		StartTime:    session.StartTime,
		AccessCode:   code,
		SessionToken: args.SessionToken,
	}
	if err := s.notifier.SendAccessNotification(ctx, session.CustomerEmail, details); err != nil {
		return fmt.Errorf("send access notification: %w", err)
	}

	s.logger.InfoContext(ctx, "provisioning complete",
		slog.String("session_id", session.ID),
		slog.String("pod_id", pod.ID),
		slog.String("access_code_id", codeID))
	return nil
}

func (s *ProvisionService) markFailed(ctx context.Context, sessionID string) {
	if err := s.provisions.SetStatusBySessionID(sessionID, domain.ProvisionFailed); err != nil {
		s.logger.ErrorContext(ctx, "failed to record provisioning failure",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}
	if err := s.provisions.IncrementAttempts(sessionID, domain.ProvisionFailed, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to count provisioning attempt",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
	observability.RecordProvisioningAttempt("failed")
}
