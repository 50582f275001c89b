package queue

import (
	"fmt"
	"strings"

	"github.com/handover/docbatch/internal/domain"
)

// UnitTaskMessage is the broker payload for one unit of a batch.
type UnitTaskMessage struct {
	BatchID       string        `json:"batchId"`
	UnitID        string        `json:"unitId"`
	Intent        domain.Intent `json:"intent"`
	Initiator     string        `json:"initiator"`
	CorrelationID string        `json:"correlationId,omitempty"`
}

func NewUnitTaskMessage(task domain.UnitTask) UnitTaskMessage {
	return UnitTaskMessage{
		BatchID:       task.BatchID,
		UnitID:        task.UnitID,
		Intent:        task.Intent,
		Initiator:     task.Initiator,
		CorrelationID: task.CorrelationID,
	}
}

func (m UnitTaskMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if strings.TrimSpace(m.UnitID) == "" {
		return fmt.Errorf("unitId is required")
	}
	if !m.Intent.IsValid() {
		return fmt.Errorf("invalid intent %q", m.Intent)
	}
	return nil
}

// MessageID identifies the unit within its batch; redeliveries share it.
func (m UnitTaskMessage) MessageID() string {
	return m.BatchID + ":" + m.UnitID
}

func (m UnitTaskMessage) Task() domain.UnitTask {
	return domain.UnitTask{
		BatchID:       m.BatchID,
		UnitID:        m.UnitID,
		Intent:        m.Intent,
		Initiator:     m.Initiator,
		CorrelationID: m.CorrelationID,
	}
}
