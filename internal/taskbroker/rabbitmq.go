package taskbroker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kestrelhq/nlsql/pkg/mlog"
	"github.com/kestrelhq/nlsql/pkg/mopentelemetry"
	"github.com/kestrelhq/nlsql/pkg/mrabbitmq"
)

// RabbitMQBroker publishes and consumes tasks over a single durable queue
// per task name, grounded on the teacher's producer/consumer split
// (`adapters/rabbitmq/producer.rabbitmq.go`,
// `adapters/implementation/rabbitmq/consumer.rabbitmq.go`).
type RabbitMQBroker struct {
	conn   *mrabbitmq.RabbitMQConnection
	logger mlog.Logger
}

// NewRabbitMQBroker wires a RabbitMQBroker to an already-configured
// connection hub.
func NewRabbitMQBroker(conn *mrabbitmq.RabbitMQConnection, logger mlog.Logger) *RabbitMQBroker {
	return &RabbitMQBroker{conn: conn, logger: logger}
}

func (b *RabbitMQBroker) declareQueue(ch *amqp.Channel, taskName string) error {
	_, err := ch.QueueDeclare(taskName, true, false, false, false, nil)
	return err
}

// Enqueue publishes payload to the durable queue named taskName, tagging
// the message with the caller-chosen taskID header for idempotent
// redelivery tracing.
func (b *RabbitMQBroker) Enqueue(ctx context.Context, taskName, taskID string, payload []byte) error {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "taskbroker.enqueue")
	defer span.End()

	ch, err := b.conn.GetChannel()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get rabbitmq channel", err)
		return err
	}

	if err := b.declareQueue(ch, taskName); err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to declare queue", err)
		return err
	}

	err = ch.PublishWithContext(ctx, "", taskName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    taskID,
		Headers:      amqp.Table{"task_id": taskID},
		Body:         payload,
	})
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to publish task", err)
		return fmt.Errorf("publishing task %s: %w", taskName, err)
	}

	b.logger.Infof("enqueued task %s id=%s", taskName, taskID)

	return nil
}

// Consume runs handler for every delivery on taskName's queue until ctx is
// cancelled. Acks happen only after handler returns nil, so a crash mid
// handler leaves the message for redelivery (at-least-once, spec §4.5);
// handler itself is required to tolerate that.
func (b *RabbitMQBroker) Consume(ctx context.Context, taskName string, handler Handler) error {
	ch, err := b.conn.GetChannel()
	if err != nil {
		return err
	}

	if err := b.declareQueue(ch, taskName); err != nil {
		return err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("setting prefetch: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, taskName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("registering consumer for %s: %w", taskName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			if err := handler(ctx, d.Body); err != nil {
				b.logger.Errorf("task %s handler failed: %s", taskName, err)

				if nackErr := d.Nack(false, true); nackErr != nil {
					b.logger.Errorf("failed to nack delivery: %s", nackErr)
				}

				continue
			}

			if err := d.Ack(false); err != nil {
				b.logger.Errorf("failed to ack delivery: %s", err)
			}
		}
	}
}

// Close releases the underlying connection and channel.
func (b *RabbitMQBroker) Close() error {
	if b.conn.Channel != nil {
		if err := b.conn.Channel.Close(); err != nil {
			return err
		}
	}

	if b.conn.Conn != nil {
		return b.conn.Conn.Close()
	}

	return nil
}
