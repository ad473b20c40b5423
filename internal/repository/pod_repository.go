package repository

import (
	"context"
	"errors"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/observability"

	"gorm.io/gorm"
)

var ErrPodNotFound = errors.New("pod not found")

type PodRepository interface {
	Create(pod *domain.Pod) error
	FindByID(id string) (*domain.Pod, error)
	FindByName(name string) (*domain.Pod, error)
	// SetInUse flips the reservation flag with a single keyed update.
	SetInUse(id string, inUse bool) error
}

type GormPodRepository struct{ db *gorm.DB }

func NewPodRepository(db *gorm.DB) PodRepository { return &GormPodRepository{db: db} }

func (r *GormPodRepository) Create(pod *domain.Pod) error {
	if err := r.db.Create(pod).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "pod", "create", "error")
		return storageErr("create pod", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "pod", "create", "success")
	return nil
}

func (r *GormPodRepository) FindByID(id string) (*domain.Pod, error) {
	var pod domain.Pod
	err := r.db.Where("id = ?", id).First(&pod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "pod", "find_by_id", "not_found")
			return nil, ErrPodNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "pod", "find_by_id", "error")
		return nil, storageErr("find pod", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "pod", "find_by_id", "success")
	return &pod, nil
}

func (r *GormPodRepository) FindByName(name string) (*domain.Pod, error) {
	var pod domain.Pod
	err := r.db.Where("name = ?", name).First(&pod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "pod", "find_by_name", "not_found")
			return nil, ErrPodNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "pod", "find_by_name", "error")
		return nil, storageErr("find pod by name", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "pod", "find_by_name", "success")
	return &pod, nil
}

func (r *GormPodRepository) SetInUse(id string, inUse bool) error {
	res := r.db.Model(&domain.Pod{}).Where("id = ?", id).Update("in_use", inUse)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "pod", "set_in_use", "error")
		return storageErr("set pod in_use", res.Error)
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "pod", "set_in_use", "not_found")
		return ErrPodNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "pod", "set_in_use", "success")
	return nil
}
