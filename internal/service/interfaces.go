package service

import "context"

// Booking is the write side of the customer flow, consumed by the HTTP
// handlers.
type Booking interface {
	CreateSetupIntent(ctx context.Context, podID string) (*SetupIntentResult, error)
	FinalizeBooking(ctx context.Context, payload map[string]any) (string, error)
	EndSession(ctx context.Context, sessionID string) error
}

// SessionReader is the read side of the customer flow.
type SessionReader interface {
	ProvisioningStatus(ctx context.Context, sessionID string) (*ProvisioningStatus, error)
	Session(ctx context.Context, sessionID string) (*SessionView, error)
	CostPreview(ctx context.Context, sessionID string) (float64, error)
	Complete(ctx context.Context, sessionID string) (bool, error)
	Pod(ctx context.Context, podID string) (*PodView, error)
}

var (
	_ Booking       = (*BookingService)(nil)
	_ SessionReader = (*SessionService)(nil)
)
