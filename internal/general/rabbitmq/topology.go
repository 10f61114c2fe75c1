package rabbitmq

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
)

// declareTopology ensures the push exchange exists. Driver queues are not
// declared here: each driver's queue is created on push registration via
// EnsureDriverQueue, so the broker only carries queues for drivers that
// actually registered.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(contracts.ExchangePushTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangePushTopic, err)
	}
	return nil
}

// EnsureDriverQueue declares the durable per-driver notification queue and
// binds it to the push exchange under the driver's routing key. Idempotent;
// called on every push registration.
func (client *Client) EnsureDriverQueue(driverID string) (string, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return "", errors.New("rabbitmq: connection is not open")
	}

	ch, err := conn.Channel()
	if err != nil {
		return "", fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer ch.Close()

	queue := contracts.PushQueueName(driverID)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, queue, contracts.ExchangePushTopic, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return queue, nil
}
