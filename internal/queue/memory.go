package queue

import (
	"context"
	"fmt"
	"sync"
)

const defaultMemoryQueueSize = 1024

type envelope struct {
	msg         UnitTaskMessage
	redelivered bool
}

// MemoryQueue is an in-process broker with the same redelivery rules as the RabbitMQ
// consumer: a failed message is requeued once, then dead-lettered.
type MemoryQueue struct {
	size int

	mu     sync.Mutex
	queues map[string]chan envelope
	dead   map[string][]UnitTaskMessage
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = defaultMemoryQueueSize
	}
	return &MemoryQueue{
		size:   size,
		queues: make(map[string]chan envelope),
		dead:   make(map[string][]UnitTaskMessage),
	}
}

func (q *MemoryQueue) Publish(ctx context.Context, queue string, msg UnitTaskMessage) error {
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid unit task message: %w", err)
	}
	return q.push(ctx, queue, envelope{msg: msg})
}

func (q *MemoryQueue) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	ch := q.queue(queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-ch:
			if err := handler(ctx, env.msg); err != nil {
				if ctx.Err() != nil {
					// Shutting down: leave the message for the next consumer.
					_ = q.push(context.Background(), queue, env)
					return nil
				}
				if env.redelivered {
					q.deadLetter(queue, env.msg)
					continue
				}
				env.redelivered = true
				if err := q.push(ctx, queue, env); err != nil {
					return nil
				}
			}
		}
	}
}

// DeadLetters returns the messages that failed twice on queue.
func (q *MemoryQueue) DeadLetters(queue string) []UnitTaskMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]UnitTaskMessage, len(q.dead[queue]))
	copy(out, q.dead[queue])
	return out
}

// Pending returns the number of messages waiting on queue.
func (q *MemoryQueue) Pending(queue string) int {
	return len(q.queue(queue))
}

func (q *MemoryQueue) Close() error {
	return nil
}

func (q *MemoryQueue) push(ctx context.Context, queue string, env envelope) error {
	select {
	case q.queue(queue) <- env:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, ctx.Err())
	}
}

func (q *MemoryQueue) queue(name string) chan envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.queues[name]
	if !ok {
		ch = make(chan envelope, q.size)
		q.queues[name] = ch
	}
	return ch
}

func (q *MemoryQueue) deadLetter(queue string, msg UnitTaskMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead[queue] = append(q.dead[queue], msg)
}
