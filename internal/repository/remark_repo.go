package repository

import (
	"context"

	"github.com/handover/docbatch/internal/domain"
	"gorm.io/gorm"
)

type RemarkRepository interface {
	Create(ctx context.Context, r *domain.TimelineRemark) error
	ListByUnit(ctx context.Context, unitID string) ([]domain.TimelineRemark, error)
}

type GormRemarkRepo struct {
	db *gorm.DB
}

func NewGormRemarkRepo(db *gorm.DB) *GormRemarkRepo {
	return &GormRemarkRepo{db: db}
}

func (r *GormRemarkRepo) Create(ctx context.Context, remark *domain.TimelineRemark) error {
	model := remarkModelFromDomain(remark)
	if model == nil {
		return domain.ErrValidation
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*remark = *remarkModelToDomain(model)
	return nil
}

// ListByUnit returns the unit timeline, newest first.
func (r *GormRemarkRepo) ListByUnit(ctx context.Context, unitID string) ([]domain.TimelineRemark, error) {
	var models []TimelineRemarkModel
	err := r.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("occurred_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	remarks := make([]domain.TimelineRemark, 0, len(models))
	for i := range models {
		remarks = append(remarks, *remarkModelToDomain(&models[i]))
	}
	return remarks, nil
}
