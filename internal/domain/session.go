package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingPodID    = errors.New("session requires a pod id")
	ErrMissingCustomer = errors.New("session requires a customer email")
)

// Session is one paid occupation of a pod. Rows are closed by setting
// EndTime exactly once; they are never deleted. AccessCodeID is set if and
// only if provisioning for the session has reached ready.
type Session struct {
	ID                     string     `gorm:"primaryKey;size:64" json:"id"`
	PodID                  string     `gorm:"index;size:64;not null" json:"pod_id"`
	CustomerEmail          string     `gorm:"size:320;not null" json:"customer_email"`
	StartTime              time.Time  `gorm:"not null" json:"start_time"`
	EndTime                *time.Time `json:"end_time,omitempty"`
	GatewayCustomerID      string     `gorm:"size:128" json:"-"`
	GatewayPaymentMethodID string     `gorm:"size:128" json:"-"`
	SetupIntentID          string     `gorm:"size:128;uniqueIndex" json:"-"`
	AccessCodeID           *string    `gorm:"size:256" json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

type NewSessionParams struct {
	PodID                  string
	CustomerEmail          string
	StartTime              time.Time
	GatewayCustomerID      string
	GatewayPaymentMethodID string
	SetupIntentID          string
}

func NewSession(p NewSessionParams) (*Session, error) {
	if p.PodID == "" {
		return nil, ErrMissingPodID
	}
	if p.CustomerEmail == "" {
		return nil, ErrMissingCustomer
	}
	start := p.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Session{
		ID:                     uuid.NewString(),
		PodID:                  p.PodID,
		CustomerEmail:          p.CustomerEmail,
		StartTime:              start,
		GatewayCustomerID:      p.GatewayCustomerID,
		GatewayPaymentMethodID: p.GatewayPaymentMethodID,
		SetupIntentID:          p.SetupIntentID,
	}, nil
}

func (s *Session) Closed() bool { return s.EndTime != nil }
