// Package payments defines the narrow surface of the external payment
// gateway the core depends on. Webhook signature validation and the
// gateway protocol live outside this service.
package payments

import (
	"context"
	"errors"
)

// ErrSetupIntentNotFound means the gateway has no record of the id.
var ErrSetupIntentNotFound = errors.New("setup intent not found")

type SetupIntentStatus string

const SetupIntentSucceeded SetupIntentStatus = "succeeded"

// SetupIntent captures the customer and payment method a confirmed
// setup produced. The core trusts this data; re-validating it against
// the gateway is the caller's concern.
type SetupIntent struct {
	ID              string
	ClientSecret    string
	Status          SetupIntentStatus
	CustomerID      string
	PaymentMethodID string
	CustomerEmail   string
}

type ChargeParams struct {
	CustomerID      string
	PaymentMethodID string
	// Amount is in minor currency units (pence).
	Amount   int64
	Currency string
}

type Gateway interface {
	CreateSetupIntent(ctx context.Context, podID string) (*SetupIntent, error)
	GetSetupIntent(ctx context.Context, id string) (*SetupIntent, error)
	Charge(ctx context.Context, p ChargeParams) error
}
