// Package taskbroker is the at-least-once job queue consulted by
// FlowRunner (spec §4.5): the HTTP layer enqueues a `wrk_add_request` task
// per new Request, workers consume and dispatch it to a flow.
package taskbroker

import "context"

// Handler processes one task's payload. Handlers must be safe to run more
// than once for the same payload (spec §4.5: delivery is at-least-once,
// RequestStore writes are idempotent on (request_id, target_status)).
type Handler func(ctx context.Context, payload []byte) error

// Broker is the producer/consumer contract. Enqueue is called with a
// client-chosen task id (the Request's task_id) so redelivery and replay
// are traceable back to the originating request.
type Broker interface {
	Enqueue(ctx context.Context, taskName, taskID string, payload []byte) error
	Consume(ctx context.Context, taskName string, handler Handler) error
	Close() error
}

// TaskAddRequest is the single broker task kind named in spec §6.
const TaskAddRequest = "wrk_add_request"
