package repository

import (
	"context"
	"errors"

	"github.com/handover/docbatch/internal/domain"
	"gorm.io/gorm"
)

type ArtifactRepository interface {
	Create(ctx context.Context, a *domain.UnitArtifact) error
	GetCurrent(ctx context.Context, unitID string, docType domain.DocumentType) (*domain.UnitArtifact, error)
	ListByUnit(ctx context.Context, unitID string) ([]domain.UnitArtifact, error)
	Delete(ctx context.Context, id string) error
}

type GormArtifactRepo struct {
	db *gorm.DB
}

func NewGormArtifactRepo(db *gorm.DB) *GormArtifactRepo {
	return &GormArtifactRepo{db: db}
}

func (r *GormArtifactRepo) Create(ctx context.Context, a *domain.UnitArtifact) error {
	model := artifactModelFromDomain(a)
	if model == nil {
		return domain.ErrValidation
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	*a = *artifactModelToDomain(model)
	return nil
}

func (r *GormArtifactRepo) GetCurrent(ctx context.Context, unitID string, docType domain.DocumentType) (*domain.UnitArtifact, error) {
	var model UnitArtifactModel
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND document_type = ?", unitID, docType).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return artifactModelToDomain(&model), nil
}

func (r *GormArtifactRepo) ListByUnit(ctx context.Context, unitID string) ([]domain.UnitArtifact, error) {
	var models []UnitArtifactModel
	err := r.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("document_type ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	artifacts := make([]domain.UnitArtifact, 0, len(models))
	for i := range models {
		artifacts = append(artifacts, *artifactModelToDomain(&models[i]))
	}
	return artifacts, nil
}

func (r *GormArtifactRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&UnitArtifactModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
