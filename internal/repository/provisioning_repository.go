package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/observability"

	"gorm.io/gorm"
)

var ErrProvisioningNotFound = errors.New("provisioning not found")

type ProvisioningRepository interface {
	Create(p *domain.Provisioning) error
	FindBySessionID(sessionID string) (*domain.Provisioning, error)
	SetStatusBySessionID(sessionID string, status domain.ProvisionStatus) error
	// IncrementAttempts bumps the attempts counter for a terminal outcome
	// and stamps the matching timestamp column. The counter only ever grows.
	IncrementAttempts(sessionID string, outcome domain.ProvisionStatus, at time.Time) error
}

type GormProvisioningRepository struct{ db *gorm.DB }

func NewProvisioningRepository(db *gorm.DB) ProvisioningRepository {
	return &GormProvisioningRepository{db: db}
}

func (r *GormProvisioningRepository) Create(p *domain.Provisioning) error {
	if err := r.db.Create(p).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "provisioning", "create", "error")
		return storageErr("create provisioning", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "provisioning", "create", "success")
	return nil
}

func (r *GormProvisioningRepository) FindBySessionID(sessionID string) (*domain.Provisioning, error) {
	var p domain.Provisioning
	err := r.db.Where("session_id = ?", sessionID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "provisioning", "find_by_session_id", "not_found")
			return nil, ErrProvisioningNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "provisioning", "find_by_session_id", "error")
		return nil, storageErr("find provisioning", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "provisioning", "find_by_session_id", "success")
	return &p, nil
}

func (r *GormProvisioningRepository) SetStatusBySessionID(sessionID string, status domain.ProvisionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid provisioning status %q", status)
	}
	res := r.db.Model(&domain.Provisioning{}).
		Where("session_id = ?", sessionID).
		Update("status", status)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "provisioning", "set_status", "error")
		return storageErr("set provisioning status", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "provisioning", "set_status", "not_found")
		return ErrProvisioningNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "provisioning", "set_status", "success")
	return nil
}

func (r *GormProvisioningRepository) IncrementAttempts(sessionID string, outcome domain.ProvisionStatus, at time.Time) error {
	if !outcome.Terminal() {
		return fmt.Errorf("attempts recorded only for terminal outcomes, got %q", outcome)
	}
	stamp := "last_ready_at"
	if outcome == domain.ProvisionFailed {
		stamp = "last_failed_at"
	}
	res := r.db.Model(&domain.Provisioning{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"attempts": gorm.Expr("attempts + 1"),
			stamp:      at.UTC(),
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "provisioning", "increment_attempts", "error")
		return storageErr("increment provisioning attempts", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "provisioning", "increment_attempts", "not_found")
		return ErrProvisioningNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "provisioning", "increment_attempts", "success")
	return nil
}
