package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/handover/docbatch/internal/repository"
	"gorm.io/gorm"
)

func createDeliveryLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_delivery_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryLogModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_delivery_logs_batch_id ON delivery_logs (batch_id) WHERE batch_id IS NOT NULL`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryLogModel{})
		},
	}
}
