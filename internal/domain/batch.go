package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchState represents the processing state of a batch.
type BatchState string

const (
	BatchStateProcessing BatchState = "PROCESSING"
	BatchStateCompleted  BatchState = "COMPLETED"
)

func (s BatchState) String() string { return string(s) }

func (s BatchState) IsValid() bool {
	switch s {
	case BatchStateProcessing, BatchStateCompleted:
		return true
	}
	return false
}

func (s BatchState) IsTerminal() bool { return s == BatchStateCompleted }

// Batch is the ledger entry of one bulk operation over a set of units.
type Batch struct {
	ID             string
	Intent         Intent
	Initiator      string
	TotalCount     int
	SucceededCount int
	FailedCount    int
	FailedUnitIDs  []string
	State          BatchState
	StartedAt      time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Batch) Processed() int {
	if b == nil {
		return 0
	}
	return b.SucceededCount + b.FailedCount
}

func (b *Batch) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: batch is required", ErrValidation)
	}
	if b.TotalCount < 1 {
		return ErrEmptyBatch
	}
	if !b.Intent.IsValid() {
		return fmt.Errorf("%w: invalid intent %q", ErrValidation, b.Intent)
	}
	if strings.TrimSpace(b.Initiator) == "" {
		return fmt.Errorf("%w: initiator is required", ErrValidation)
	}
	if b.SucceededCount+b.FailedCount > b.TotalCount {
		return fmt.Errorf("%w: processed count exceeds total", ErrValidation)
	}
	return nil
}

// ItemOutcome is the per-unit result inside a batch.
type ItemOutcome string

const (
	ItemOutcomePending   ItemOutcome = "PENDING"
	ItemOutcomeSucceeded ItemOutcome = "SUCCEEDED"
	ItemOutcomeFailed    ItemOutcome = "FAILED"
)

func (o ItemOutcome) String() string { return string(o) }

// BatchItem tracks one unit of a batch. It leaves PENDING at most once.
type BatchItem struct {
	BatchID   string
	UnitID    string
	Outcome   ItemOutcome
	Reason    *string
	Attempts  int
	UpdatedAt time.Time
}

// OutcomeResult is returned by the ledger after recording one unit outcome.
type OutcomeResult struct {
	Batch *Batch
	// Duplicate is set when the unit already had an outcome; counters were left untouched.
	Duplicate bool
	// Completed is set only for the call that moved the batch to its terminal state.
	Completed bool
}
