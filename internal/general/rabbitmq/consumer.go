package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// handleTimeout bounds one delivery. A notification only nudges the driver
// to re-fetch state, so a handler stuck longer than this is abandoned.
const handleTimeout = 30 * time.Second

// Consume drains queue with manual acks until ctx is cancelled or the
// channel dies. A delivery whose handler fails is nacked without requeue:
// notifications are disposable, and requeueing a bad payload would loop it
// through the bridge forever.
func (client *Client) Consume(
	ctx context.Context,
	queue string,
	consumerTag string,
	prefetch int,
	handler func(context.Context, amqp.Delivery) error,
) error {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not ready")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer ch.Close()

	if prefetch <= 0 {
		prefetch = 1 // one unacked notification at a time
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
	}

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}

	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			if consumerTag != "" {
				_ = ch.Cancel(consumerTag, false)
			}
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			settle(ctx, d, handler)
		}
	}
}

// settle runs the handler under the per-delivery timeout, then acks the
// delivery or drops it.
func settle(ctx context.Context, d amqp.Delivery, handler func(context.Context, amqp.Delivery) error) {
	hCtx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if err := handler(hCtx, d); err != nil {
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
