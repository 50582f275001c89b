package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/handover/docbatch/internal/domain"
)

// Publisher publishes unit task messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg UnitTaskMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message. A returned error hands the message
// back to the broker for redelivery.
type MessageHandler func(ctx context.Context, msg UnitTaskMessage) error

// Consumer consumes unit task messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const queuePrefix = "unit"

// QueueName returns the intent work queue name, e.g. unit.generate_soa.
func QueueName(intent domain.Intent) string {
	return fmt.Sprintf("%s.%s", queuePrefix, strings.ToLower(intent.String()))
}

// DLQName returns the dead-letter queue name for an intent, e.g. dlq.unit.generate_soa.
func DLQName(intent domain.Intent) string {
	return fmt.Sprintf("dlq.%s", QueueName(intent))
}

// WorkQueueNames returns one work queue per intent.
func WorkQueueNames() []string {
	intents := domain.Intents()
	queues := make([]string, 0, len(intents))
	for _, intent := range intents {
		queues = append(queues, QueueName(intent))
	}
	return queues
}

// DLQNames returns one dead-letter queue per intent.
func DLQNames() []string {
	intents := domain.Intents()
	queues := make([]string, 0, len(intents))
	for _, intent := range intents {
		queues = append(queues, DLQName(intent))
	}
	return queues
}
