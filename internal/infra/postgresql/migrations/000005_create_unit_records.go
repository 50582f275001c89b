package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/handover/docbatch/internal/repository"
	"gorm.io/gorm"
)

// The records tables are owned by the property records service. AutoMigrate leaves
// existing tables alone, so this only creates them on a fresh local database.
func createUnitRecordsTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_unit_records",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&repository.PropertyModel{},
				&repository.UnitModel{},
				&repository.OwnerModel{},
				&repository.UnitOwnerModel{},
				&repository.PaymentModel{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return nil
		},
	}
}
