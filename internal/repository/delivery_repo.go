package repository

import (
	"context"

	"github.com/handover/docbatch/internal/domain"
	"gorm.io/gorm"
)

type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.DeliveryLog) error
	ListByUnit(ctx context.Context, unitID string) ([]domain.DeliveryLog, error)
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) Create(ctx context.Context, d *domain.DeliveryLog) error {
	model := deliveryModelFromDomain(d)
	if model == nil {
		return domain.ErrValidation
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*d = *deliveryModelToDomain(model)
	return nil
}

func (r *GormDeliveryRepo) ListByUnit(ctx context.Context, unitID string) ([]domain.DeliveryLog, error) {
	var models []DeliveryLogModel
	err := r.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("attempted_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	logs := make([]domain.DeliveryLog, 0, len(models))
	for i := range models {
		logs = append(logs, *deliveryModelToDomain(&models[i]))
	}
	return logs, nil
}
