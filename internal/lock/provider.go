// Package lock abstracts the physical lock backend that allocates,
// reads and revokes time-bound numeric door codes.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDeviceUnsupported   = errors.New("device cannot program access codes")
	ErrCodeNotFound        = errors.New("access code not found")
	ErrProvisioningTimeout = errors.New("timed out waiting on lock provider")
)

// CodeValidity is how long an allocated code stays usable on the device.
// Sessions ending earlier revoke the code explicitly.
const CodeValidity = 180 * time.Minute

type CodeProvider interface {
	// Allocate programs a code on the device valid from startsAt for
	// CodeValidity and returns its id once the provider confirms the
	// code is actively set.
	Allocate(ctx context.Context, startsAt time.Time, deviceID string) (string, error)
	// Read returns the human-facing code value for an allocation.
	Read(ctx context.Context, codeID string) (string, error)
	// Revoke removes the code and returns only once the provider no
	// longer reports it as active.
	Revoke(ctx context.Context, codeID string) error
	// Reusable reports whether codes come from a shared pool rather
	// than being leased per session. Reusable codes are never revoked.
	Reusable() bool
}
