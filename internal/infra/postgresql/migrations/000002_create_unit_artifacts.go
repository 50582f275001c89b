package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/handover/docbatch/internal/repository"
	"gorm.io/gorm"
)

func createUnitArtifactsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_unit_artifacts",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.UnitArtifactModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.UnitArtifactModel{})
		},
	}
}
