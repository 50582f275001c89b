package domain

import "time"

// DeliveryStatus is the outcome of one notification attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "SENT"
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

// DeliveryLog records a single send attempt to one recipient. Rows are never updated.
type DeliveryLog struct {
	ID            string
	UnitID        string
	BatchID       *string
	Recipient     string
	RecipientName string
	Subject       string
	Status        DeliveryStatus
	Error         *string
	AttemptedAt   time.Time
}
