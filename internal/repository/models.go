package repository

import (
	"time"

	"github.com/handover/docbatch/internal/domain"
	"github.com/shopspring/decimal"
)

// BatchModel is the persistence model for the batches ledger.
type BatchModel struct {
	ID             string            `gorm:"type:uuid;primaryKey"`
	Intent         domain.Intent     `gorm:"type:varchar(40);not null"`
	Initiator      string            `gorm:"type:varchar(255);not null"`
	TotalCount     int               `gorm:"not null"`
	SucceededCount int               `gorm:"not null;default:0"`
	FailedCount    int               `gorm:"not null;default:0"`
	State          domain.BatchState `gorm:"type:varchar(20);not null"`
	StartedAt      time.Time         `gorm:"not null"`
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// BatchItemModel is the persistence model for batch_items.
type BatchItemModel struct {
	BatchID   string             `gorm:"type:uuid;primaryKey"`
	UnitID    string             `gorm:"type:varchar(64);primaryKey"`
	Outcome   domain.ItemOutcome `gorm:"type:varchar(20);not null"`
	Reason    *string            `gorm:"type:varchar(64)"`
	Attempts  int                `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (BatchItemModel) TableName() string {
	return "batch_items"
}

// UnitArtifactModel is the persistence model for unit_artifacts.
type UnitArtifactModel struct {
	ID           string              `gorm:"type:uuid;primaryKey"`
	UnitID       string              `gorm:"type:varchar(64);not null;uniqueIndex:idx_unit_artifacts_unit_type"`
	DocumentType domain.DocumentType `gorm:"type:varchar(40);not null;uniqueIndex:idx_unit_artifacts_unit_type"`
	StoragePath  string              `gorm:"type:varchar(512);not null"`
	FileName     string              `gorm:"type:varchar(255);not null"`
	SizeBytes    int64               `gorm:"not null;default:0"`
	GeneratedBy  string              `gorm:"type:varchar(255);not null"`
	GeneratedAt  time.Time           `gorm:"not null"`
}

func (UnitArtifactModel) TableName() string {
	return "unit_artifacts"
}

// DeliveryLogModel is the persistence model for delivery_logs.
type DeliveryLogModel struct {
	ID            string                `gorm:"type:uuid;primaryKey"`
	UnitID        string                `gorm:"type:varchar(64);not null;index"`
	BatchID       *string               `gorm:"type:uuid"`
	Recipient     string                `gorm:"type:varchar(255);not null"`
	RecipientName string                `gorm:"type:varchar(255)"`
	Subject       string                `gorm:"type:varchar(255);not null"`
	Status        domain.DeliveryStatus `gorm:"type:varchar(10);not null"`
	Error         *string               `gorm:"type:text"`
	AttemptedAt   time.Time             `gorm:"not null"`
}

func (DeliveryLogModel) TableName() string {
	return "delivery_logs"
}

// TimelineRemarkModel is the persistence model for timeline_remarks.
type TimelineRemarkModel struct {
	ID         string                `gorm:"type:uuid;primaryKey"`
	UnitID     string                `gorm:"type:varchar(64);not null;index"`
	OccurredAt time.Time             `gorm:"not null"`
	Event      string                `gorm:"type:text;not null"`
	Category   domain.RemarkCategory `gorm:"type:varchar(20);not null"`
	AdminID    string                `gorm:"type:varchar(255)"`
}

func (TimelineRemarkModel) TableName() string {
	return "timeline_remarks"
}

// PropertyModel, UnitModel, OwnerModel, UnitOwnerModel and PaymentModel are owned by the
// records service; this service only reads them.
type PropertyModel struct {
	ID      string `gorm:"type:varchar(64);primaryKey"`
	Name    string `gorm:"type:varchar(255);not null"`
	Address string `gorm:"type:text"`
}

func (PropertyModel) TableName() string {
	return "properties"
}

type UnitModel struct {
	ID            string          `gorm:"type:varchar(64);primaryKey"`
	PropertyID    string          `gorm:"type:varchar(64);not null;index"`
	UnitNumber    string          `gorm:"type:varchar(64);not null"`
	Floor         string          `gorm:"type:varchar(32)"`
	ContractPrice decimal.Decimal `gorm:"type:numeric(16,2);not null;default:0"`
	TurnoverDate  *time.Time
}

func (UnitModel) TableName() string {
	return "units"
}

type OwnerModel struct {
	ID    string `gorm:"type:varchar(64);primaryKey"`
	Name  string `gorm:"type:varchar(255);not null"`
	Email string `gorm:"type:varchar(255)"`
}

func (OwnerModel) TableName() string {
	return "owners"
}

type UnitOwnerModel struct {
	UnitID  string `gorm:"type:varchar(64);primaryKey"`
	OwnerID string `gorm:"type:varchar(64);primaryKey"`
}

func (UnitOwnerModel) TableName() string {
	return "unit_owners"
}

type PaymentModel struct {
	ID        string          `gorm:"type:varchar(64);primaryKey"`
	UnitID    string          `gorm:"type:varchar(64);not null;index"`
	Reference string          `gorm:"type:varchar(128)"`
	Amount    decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	PaidAt    time.Time       `gorm:"not null"`
}

func (PaymentModel) TableName() string {
	return "unit_payments"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:             b.ID,
		Intent:         b.Intent,
		Initiator:      b.Initiator,
		TotalCount:     b.TotalCount,
		SucceededCount: b.SucceededCount,
		FailedCount:    b.FailedCount,
		State:          b.State,
		StartedAt:      b.StartedAt,
		CompletedAt:    b.CompletedAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:             m.ID,
		Intent:         m.Intent,
		Initiator:      m.Initiator,
		TotalCount:     m.TotalCount,
		SucceededCount: m.SucceededCount,
		FailedCount:    m.FailedCount,
		State:          m.State,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func batchItemModelToDomain(m *BatchItemModel) *domain.BatchItem {
	if m == nil {
		return nil
	}

	return &domain.BatchItem{
		BatchID:   m.BatchID,
		UnitID:    m.UnitID,
		Outcome:   m.Outcome,
		Reason:    m.Reason,
		Attempts:  m.Attempts,
		UpdatedAt: m.UpdatedAt,
	}
}

func artifactModelFromDomain(a *domain.UnitArtifact) *UnitArtifactModel {
	if a == nil {
		return nil
	}

	return &UnitArtifactModel{
		ID:           a.ID,
		UnitID:       a.UnitID,
		DocumentType: a.DocumentType,
		StoragePath:  a.StoragePath,
		FileName:     a.FileName,
		SizeBytes:    a.SizeBytes,
		GeneratedBy:  a.GeneratedBy,
		GeneratedAt:  a.GeneratedAt,
	}
}

func artifactModelToDomain(m *UnitArtifactModel) *domain.UnitArtifact {
	if m == nil {
		return nil
	}

	return &domain.UnitArtifact{
		ID:           m.ID,
		UnitID:       m.UnitID,
		DocumentType: m.DocumentType,
		StoragePath:  m.StoragePath,
		FileName:     m.FileName,
		SizeBytes:    m.SizeBytes,
		GeneratedBy:  m.GeneratedBy,
		GeneratedAt:  m.GeneratedAt,
	}
}

func deliveryModelFromDomain(d *domain.DeliveryLog) *DeliveryLogModel {
	if d == nil {
		return nil
	}

	return &DeliveryLogModel{
		ID:            d.ID,
		UnitID:        d.UnitID,
		BatchID:       d.BatchID,
		Recipient:     d.Recipient,
		RecipientName: d.RecipientName,
		Subject:       d.Subject,
		Status:        d.Status,
		Error:         d.Error,
		AttemptedAt:   d.AttemptedAt,
	}
}

func deliveryModelToDomain(m *DeliveryLogModel) *domain.DeliveryLog {
	if m == nil {
		return nil
	}

	return &domain.DeliveryLog{
		ID:            m.ID,
		UnitID:        m.UnitID,
		BatchID:       m.BatchID,
		Recipient:     m.Recipient,
		RecipientName: m.RecipientName,
		Subject:       m.Subject,
		Status:        m.Status,
		Error:         m.Error,
		AttemptedAt:   m.AttemptedAt,
	}
}

func remarkModelFromDomain(r *domain.TimelineRemark) *TimelineRemarkModel {
	if r == nil {
		return nil
	}

	return &TimelineRemarkModel{
		ID:         r.ID,
		UnitID:     r.UnitID,
		OccurredAt: r.OccurredAt,
		Event:      r.Event,
		Category:   r.Category,
		AdminID:    r.AdminID,
	}
}

func remarkModelToDomain(m *TimelineRemarkModel) *domain.TimelineRemark {
	if m == nil {
		return nil
	}

	return &domain.TimelineRemark{
		ID:         m.ID,
		UnitID:     m.UnitID,
		OccurredAt: m.OccurredAt,
		Event:      m.Event,
		Category:   m.Category,
		AdminID:    m.AdminID,
	}
}
