package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/podworks/pod-access-service/internal/repository"
)

// DeprovisionArgs carries everything a deferred cleanup run needs.
// AccessCodeID may be empty when provisioning never allocated a code;
// the pod is still released.
type DeprovisionArgs struct {
	AccessCodeID string
	PodID        string
	Static       bool
}

// DeprovisionService tears a session down after it ends: it revokes the
// access code on the backend that issued it and returns the pod to the
// available pool. Codes from reusable backends are left in place.
type DeprovisionService struct {
	pods      repository.PodRepository
	providers CodeProviders
	logger    *slog.Logger
}

func NewDeprovisionService(pods repository.PodRepository, providers CodeProviders, logger *slog.Logger) *DeprovisionService {
	return &DeprovisionService{pods: pods, providers: providers, logger: logger}
}

func (s *DeprovisionService) Run(ctx context.Context, args DeprovisionArgs) error {
	provider := s.providers.Pick(args.Static)

	if args.AccessCodeID != "" && !provider.Reusable() {
		if err := provider.Revoke(ctx, args.AccessCodeID); err != nil {
			return fmt.Errorf("revoke access code %s: %w", args.AccessCodeID, err)
		}
	}

	if err := s.pods.SetInUse(args.PodID, false); err != nil {
		return fmt.Errorf("release pod %s: %w", args.PodID, err)
	}

	s.logger.InfoContext(ctx, "deprovisioning complete",
		slog.String("pod_id", args.PodID),
		slog.Bool("code_revoked", args.AccessCodeID != "" && !provider.Reusable()))
	return nil
}
