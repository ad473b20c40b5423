package payments

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway is an in-process gateway for development and demo
// environments. Setup intents succeed immediately and charges are only
// logged.
type SandboxGateway struct {
	mu            sync.Mutex
	intents       map[string]*SetupIntent
	customerEmail string
	logger        *slog.Logger
}

func NewSandboxGateway(logger *slog.Logger, customerEmail string) *SandboxGateway {
	return &SandboxGateway{
		intents:       map[string]*SetupIntent{},
		customerEmail: customerEmail,
		logger:        logger,
	}
}

func (g *SandboxGateway) CreateSetupIntent(ctx context.Context, podID string) (*SetupIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := "si_sandbox_" + uuid.NewString()
	intent := &SetupIntent{
		ID:              id,
		ClientSecret:    id + "_secret",
		Status:          SetupIntentSucceeded,
		CustomerID:      "cus_sandbox",
		PaymentMethodID: "pm_sandbox",
		CustomerEmail:   g.customerEmail,
	}
	g.intents[id] = intent
	g.logger.InfoContext(ctx, "sandbox setup intent created",
		slog.String("setup_intent_id", id),
		slog.String("pod_id", podID))
	return intent, nil
}

func (g *SandboxGateway) GetSetupIntent(ctx context.Context, id string) (*SetupIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSetupIntentNotFound, id)
	}
	return intent, nil
}

func (g *SandboxGateway) Charge(ctx context.Context, p ChargeParams) error {
	g.logger.InfoContext(ctx, "sandbox charge",
		slog.String("customer_id", p.CustomerID),
		slog.Int64("amount", p.Amount),
		slog.String("currency", p.Currency))
	return nil
}

var _ Gateway = (*SandboxGateway)(nil)
