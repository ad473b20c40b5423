package repository

import (
	"context"
	"errors"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyClosed = errors.New("session already closed")
)

type SessionRepository interface {
	Create(s *domain.Session) error
	FindByID(id string) (*domain.Session, error)
	// FindBySetupIntentID backs the idempotent finalize path: a setup
	// intent that already produced a session must not produce a second one.
	FindBySetupIntentID(setupIntentID string) (*domain.Session, error)
	// SetAccessCodeID persists the allocated code id. The write is
	// conditional on no code being present, so concurrent provisioning
	// attempts cannot overwrite an earlier allocation.
	SetAccessCodeID(sessionID, accessCodeID string) error
	// Close sets the end time exactly once.
	Close(sessionID string, endTime time.Time) error
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.Session) error {
	if err := r.db.Create(s).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return storageErr("create session", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByID(id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "error")
		return nil, storageErr("find session", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "success")
	return &s, nil
}

func (r *GormSessionRepository) FindBySetupIntentID(setupIntentID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("setup_intent_id = ?", setupIntentID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_setup_intent", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_setup_intent", "error")
		return nil, storageErr("find session by setup intent", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_setup_intent", "success")
	return &s, nil
}

func (r *GormSessionRepository) SetAccessCodeID(sessionID, accessCodeID string) error {
	res := r.db.Model(&domain.Session{}).
		Where("id = ? AND access_code_id IS NULL", sessionID).
		Update("access_code_id", accessCodeID)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "set_access_code_id", "error")
		return storageErr("set access code id", res.Error)
	}
	if res.RowsAffected == 0 {
		var s domain.Session
		if err := r.db.Where("id = ?", sessionID).First(&s).Error; err != nil {
			observability.RecordRepositoryOperation(context.Background(), "session", "set_access_code_id", "not_found")
			return ErrSessionNotFound
		}
		// Row exists with a code already set: treat the write as applied,
		// the idempotency check upstream decides what happens next.
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "set_access_code_id", "success")
	return nil
}

func (r *GormSessionRepository) Close(sessionID string, endTime time.Time) error {
	res := r.db.Model(&domain.Session{}).
		Where("id = ? AND end_time IS NULL", sessionID).
		Update("end_time", endTime.UTC())
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "close", "error")
		return storageErr("close session", res.Error)
	}
	if res.RowsAffected == 0 {
		var s domain.Session
		if err := r.db.Where("id = ?", sessionID).First(&s).Error; err != nil {
			observability.RecordRepositoryOperation(context.Background(), "session", "close", "not_found")
			return ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "close", "already_closed")
		return ErrSessionAlreadyClosed
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "close", "success")
	return nil
}
