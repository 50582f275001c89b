package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/handover/docbatch/internal/domain"
)

func TestQueueNames(t *testing.T) {
	work := WorkQueueNames()
	if len(work) != 5 {
		t.Fatalf("WorkQueueNames len = %d, want 5", len(work))
	}

	expected := map[string]struct{}{
		"unit.generate_soa":                {},
		"unit.generate_utilities_guide":    {},
		"unit.generate_handover_checklist": {},
		"unit.send_soa_email":              {},
		"unit.send_handover_email":         {},
	}

	for _, name := range work {
		if _, ok := expected[name]; !ok {
			t.Fatalf("unexpected queue name: %s", name)
		}
	}

	dlq := DLQNames()
	if len(dlq) != 5 {
		t.Fatalf("DLQNames len = %d, want 5", len(dlq))
	}
	for _, name := range dlq {
		if _, ok := expected[name[len("dlq."):]]; !ok {
			t.Fatalf("unexpected dlq name: %s", name)
		}
	}
}

func TestQueueName(t *testing.T) {
	queueName := QueueName(domain.IntentGenerateSOA)
	if queueName != "unit.generate_soa" {
		t.Fatalf("QueueName = %s, want unit.generate_soa", queueName)
	}

	dlqName := DLQName(domain.IntentSendHandoverEmail)
	if dlqName != "dlq.unit.send_handover_email" {
		t.Fatalf("DLQName = %s, want dlq.unit.send_handover_email", dlqName)
	}
}

func TestUnitTaskMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *UnitTaskMessage)
		wantErr bool
	}{
		{name: "valid", mutate: func(*UnitTaskMessage) {}},
		{name: "missing batch", mutate: func(m *UnitTaskMessage) { m.BatchID = "" }, wantErr: true},
		{name: "missing unit", mutate: func(m *UnitTaskMessage) { m.UnitID = " " }, wantErr: true},
		{name: "invalid intent", mutate: func(m *UnitTaskMessage) { m.Intent = domain.Intent("PRINT") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := UnitTaskMessage{BatchID: "b1", UnitID: "u1", Intent: domain.IntentGenerateSOA, Initiator: "admin-1"}
			tt.mutate(&msg)
			err := msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnitTaskMessageRoundTripsTask(t *testing.T) {
	task := domain.UnitTask{BatchID: "b1", UnitID: "u1", Intent: domain.IntentSendSOAEmail, Initiator: "admin-1", CorrelationID: "c1"}
	msg := NewUnitTaskMessage(task)
	if msg.Task() != task {
		t.Fatalf("Task() = %+v, want %+v", msg.Task(), task)
	}
	if msg.MessageID() != "b1:u1" {
		t.Fatalf("MessageID() = %q, want b1:u1", msg.MessageID())
	}
}

func TestMemoryQueuePublishConsume(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(10)
	queueName := QueueName(domain.IntentGenerateSOA)
	for _, unitID := range []string{"u1", "u2", "u3"} {
		if err := q.Publish(context.Background(), queueName, UnitTaskMessage{BatchID: "b1", UnitID: unitID, Intent: domain.IntentGenerateSOA}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
		done = make(chan struct{})
	)
	go func() {
		_ = q.Consume(ctx, queueName, func(_ context.Context, msg UnitTaskMessage) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, msg.UnitID)
			if len(seen) == 3 {
				close(done)
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != "u1" || seen[1] != "u2" || seen[2] != "u3" {
		t.Fatalf("unexpected order: %v", seen)
	}
}

func TestMemoryQueueRequeuesOnceThenDeadLetters(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(10)
	queueName := QueueName(domain.IntentGenerateSOA)
	if err := q.Publish(context.Background(), queueName, UnitTaskMessage{BatchID: "b1", UnitID: "u1", Intent: domain.IntentGenerateSOA}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 4)
	go func() {
		_ = q.Consume(ctx, queueName, func(context.Context, UnitTaskMessage) error {
			calls <- struct{}{}
			return errors.New("ledger unavailable")
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i+1)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(q.DeadLetters(queueName)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected message in dead letters")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := q.DeadLetters(queueName); len(got) != 1 || got[0].UnitID != "u1" {
		t.Fatalf("DeadLetters() = %+v", got)
	}
}

func TestMemoryQueuePublishRejectsInvalidMessage(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Publish(context.Background(), "unit.generate_soa", UnitTaskMessage{}); err == nil {
		t.Fatal("expected validation error")
	}
}
