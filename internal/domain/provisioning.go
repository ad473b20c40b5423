package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ProvisionStatus string

const (
	ProvisionDraft   ProvisionStatus = "draft"
	ProvisionPending ProvisionStatus = "pending"
	ProvisionReady   ProvisionStatus = "ready"
	ProvisionFailed  ProvisionStatus = "failed"
	ProvisionExpired ProvisionStatus = "expired"
)

var ErrMissingSessionID = errors.New("provisioning requires a session id")

func (s ProvisionStatus) Valid() bool {
	switch s {
	case ProvisionDraft, ProvisionPending, ProvisionReady, ProvisionFailed, ProvisionExpired:
		return true
	}
	return false
}

// Terminal reports whether the status is a terminal outcome of a
// provisioning attempt. Failed is terminal per attempt, not per session:
// the job may be re-invoked and the attempts counter keeps growing.
func (s ProvisionStatus) Terminal() bool {
	return s == ProvisionReady || s == ProvisionFailed
}

// Provisioning tracks the state machine driving a session from payment
// confirmation to a working door code. Exactly one row per session.
type Provisioning struct {
	ID           string          `gorm:"primaryKey;size:64" json:"id"`
	SessionID    string          `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	Status       ProvisionStatus `gorm:"size:16;not null" json:"status"`
	Attempts     int             `gorm:"not null;default:0" json:"attempts"`
	LastReadyAt  *time.Time      `json:"last_ready_at,omitempty"`
	LastFailedAt *time.Time      `json:"last_failed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewProvisioning creates a pending record. The id may be supplied by the
// caller (it is minted when the provisioning token is issued, before the
// session exists) or left empty to generate one.
func NewProvisioning(id, sessionID string) (*Provisioning, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Provisioning{
		ID:        id,
		SessionID: sessionID,
		Status:    ProvisionPending,
	}, nil
}
