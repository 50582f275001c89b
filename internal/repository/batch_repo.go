package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/handover/docbatch/internal/domain"
	"gorm.io/gorm"
)

// OutcomeParams describes one unit outcome reported to the ledger.
type OutcomeParams struct {
	BatchID  string
	UnitID   string
	Success  bool
	Reason   string
	Attempts int
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch, unitIDs []string) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	RecordOutcome(ctx context.Context, params OutcomeParams) (*domain.OutcomeResult, error)
	GetItem(ctx context.Context, batchID string, unitID string) (*domain.BatchItem, error)
	ListItems(ctx context.Context, batchID string) ([]domain.BatchItem, error)
	ListPendingUnitIDs(ctx context.Context, batchID string) ([]string, error)
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Batch, error)
	Touch(ctx context.Context, id string) error
}

type GormBatchRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db, now: time.Now}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch, unitIDs []string) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if len(unitIDs) != b.TotalCount {
		return fmt.Errorf("%w: unit count does not match batch total", domain.ErrValidation)
	}

	model := batchModelFromDomain(b)
	now := r.now().UTC()
	items := make([]BatchItemModel, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		items = append(items, BatchItemModel{
			BatchID:   model.ID,
			UnitID:    unitID,
			Outcome:   domain.ItemOutcomePending,
			UpdatedAt: now,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(&items, 100).Error
	})
	if err != nil {
		return err
	}

	*b = *batchModelToDomain(model)
	b.FailedUnitIDs = []string{}
	return nil
}

// GetByID returns the batch snapshot including the ids of failed units.
func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	return loadSnapshot(r.db.WithContext(ctx), id)
}

// RecordOutcome moves one item out of PENDING and applies it to the batch counters in a
// single transaction. A unit that already has an outcome is reported as a duplicate and
// leaves the counters untouched. Completed is set for exactly one caller per batch.
func (r *GormBatchRepo) RecordOutcome(ctx context.Context, params OutcomeParams) (*domain.OutcomeResult, error) {
	outcome := domain.ItemOutcomeSucceeded
	counter := "succeeded_count"
	var reason *string
	if !params.Success {
		outcome = domain.ItemOutcomeFailed
		counter = "failed_count"
		reason = &params.Reason
	}

	result := &domain.OutcomeResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now().UTC()

		itemUpdate := tx.Model(&BatchItemModel{}).
			Where("batch_id = ? AND unit_id = ? AND outcome = ?", params.BatchID, params.UnitID, domain.ItemOutcomePending).
			Updates(map[string]any{
				"outcome":    outcome,
				"reason":     reason,
				"attempts":   params.Attempts,
				"updated_at": now,
			})
		if itemUpdate.Error != nil {
			return itemUpdate.Error
		}

		if itemUpdate.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&BatchItemModel{}).
				Where("batch_id = ? AND unit_id = ?", params.BatchID, params.UnitID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			result.Duplicate = true
		} else {
			counterUpdate := tx.Model(&BatchModel{}).
				Where("id = ? AND state = ?", params.BatchID, domain.BatchStateProcessing).
				Updates(map[string]any{
					counter:      gorm.Expr(counter + " + 1"),
					"updated_at": now,
				})
			if counterUpdate.Error != nil {
				return counterUpdate.Error
			}
			if counterUpdate.RowsAffected == 0 {
				return domain.ErrConflict
			}

			completion := tx.Model(&BatchModel{}).
				Where("id = ? AND state = ? AND succeeded_count + failed_count = total_count",
					params.BatchID, domain.BatchStateProcessing).
				Updates(map[string]any{
					"state":        domain.BatchStateCompleted,
					"completed_at": now,
					"updated_at":   now,
				})
			if completion.Error != nil {
				return completion.Error
			}
			result.Completed = completion.RowsAffected == 1
		}

		snapshot, err := loadSnapshot(tx, params.BatchID)
		if err != nil {
			return err
		}
		result.Batch = snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *GormBatchRepo) GetItem(ctx context.Context, batchID string, unitID string) (*domain.BatchItem, error) {
	var model BatchItemModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND unit_id = ?", batchID, unitID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchItemModelToDomain(&model), nil
}

func (r *GormBatchRepo) ListItems(ctx context.Context, batchID string) ([]domain.BatchItem, error) {
	var models []BatchItemModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("unit_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.BatchItem, 0, len(models))
	for i := range models {
		items = append(items, *batchItemModelToDomain(&models[i]))
	}
	return items, nil
}

func (r *GormBatchRepo) ListPendingUnitIDs(ctx context.Context, batchID string) ([]string, error) {
	var unitIDs []string
	err := r.db.WithContext(ctx).
		Model(&BatchItemModel{}).
		Where("batch_id = ? AND outcome = ?", batchID, domain.ItemOutcomePending).
		Order("unit_id ASC").
		Pluck("unit_id", &unitIDs).Error
	if err != nil {
		return nil, err
	}
	return unitIDs, nil
}

// ListStale returns processing batches whose ledger has not moved since updatedBefore.
func (r *GormBatchRepo) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Batch, error) {
	if limit <= 0 {
		limit = 100
	}

	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", domain.BatchStateProcessing, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}
	return batches, nil
}

func (r *GormBatchRepo) Touch(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Update("updated_at", r.now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func loadSnapshot(db *gorm.DB, id string) (*domain.Batch, error) {
	var model BatchModel
	err := db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	failed := []string{}
	err = db.Model(&BatchItemModel{}).
		Where("batch_id = ? AND outcome = ?", id, domain.ItemOutcomeFailed).
		Order("unit_id ASC").
		Pluck("unit_id", &failed).Error
	if err != nil {
		return nil, err
	}

	if failed == nil {
		failed = []string{}
	}
	b := batchModelToDomain(&model)
	b.FailedUnitIDs = failed
	return b, nil
}
