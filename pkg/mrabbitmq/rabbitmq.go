// Package mrabbitmq wraps the amqp091-go connection lifecycle the way the
// teacher's common/mrabbitmq wraps streadway/amqp: a single reconnecting
// hub handed to higher-level producer/consumer code.
package mrabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// RabbitMQConnection is a hub dealing with a single broker connection and
// channel, reconnecting lazily on first use.
type RabbitMQConnection struct {
	URL       string
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	Connected bool
	Logger    mlog.Logger
}

// Connect dials the broker and opens a channel.
func (rc *RabbitMQConnection) Connect() error {
	rc.Logger.Info("connecting to rabbitmq...")

	conn, err := amqp.Dial(rc.URL)
	if err != nil {
		return fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	rc.Conn = conn
	rc.Channel = ch
	rc.Connected = true

	rc.Logger.Info("connected to rabbitmq")

	return nil
}

// GetChannel returns the channel, connecting lazily.
func (rc *RabbitMQConnection) GetChannel() (*amqp.Channel, error) {
	if !rc.Connected {
		if err := rc.Connect(); err != nil {
			return nil, err
		}
	}

	return rc.Channel, nil
}
