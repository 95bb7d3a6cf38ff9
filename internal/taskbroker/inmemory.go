package taskbroker

import (
	"context"
	"sync"
)

// InMemoryBroker is a single-process Broker used by tests and by the
// `cmd/app` single-binary mode when no RabbitMQ URL is configured. Delivery
// order within one taskName is FIFO; there is no cross-process visibility.
type InMemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan task
}

type task struct {
	id      string
	payload []byte
}

// NewInMemoryBroker returns an empty broker.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{queues: make(map[string]chan task)}
}

func (b *InMemoryBroker) queueFor(taskName string) chan task {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[taskName]
	if !ok {
		q = make(chan task, 1024)
		b.queues[taskName] = q
	}

	return q
}

// Enqueue pushes payload onto taskName's channel.
func (b *InMemoryBroker) Enqueue(ctx context.Context, taskName, taskID string, payload []byte) error {
	select {
	case b.queueFor(taskName) <- task{id: taskID, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume runs handler for every task pushed to taskName until ctx is
// cancelled. A failing handler is retried by re-enqueueing the task,
// mirroring at-least-once broker redelivery semantics.
func (b *InMemoryBroker) Consume(ctx context.Context, taskName string, handler Handler) error {
	q := b.queueFor(taskName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-q:
			if err := handler(ctx, t.payload); err != nil {
				select {
				case q <- t:
				default:
				}
			}
		}
	}
}

// Close is a no-op for the in-memory broker.
func (b *InMemoryBroker) Close() error { return nil }
