package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/handover/docbatch/internal/repository"
	"gorm.io/gorm"
)

func createBatchesTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}, &repository.BatchItemModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_batches_processing_updated ON batches (updated_at) WHERE state = 'PROCESSING'`,
				`CREATE INDEX IF NOT EXISTS idx_batch_items_pending ON batch_items (batch_id) WHERE outcome = 'PENDING'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchItemModel{}, &repository.BatchModel{})
		},
	}
}
