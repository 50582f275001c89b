package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/handover/docbatch/internal/repository"
	"gorm.io/gorm"
)

func createTimelineRemarksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_timeline_remarks",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.TimelineRemarkModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TimelineRemarkModel{})
		},
	}
}
