package contracts

import "time"

// AMQP topology for the durable push channel.
const (
	ExchangePushTopic = "push_topic"
	RoutePushPrefix   = "push.driver." // {driver_id}
	QueuePushPrefix   = "push.driver." // per-driver queue, same name as the routing key
)

// Notification is the push payload. Data may carry an "order_id" entry; its
// presence (not its content) tells the receiver to refresh order lists.
type Notification struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Envelope
}

// NotificationDataOrderID is the well-known Data key carrying an order
// reference.
const NotificationDataOrderID = "order_id"

// PushQueueName returns the per-driver queue name, which doubles as the
// device token reported to the backend.
func PushQueueName(driverID string) string {
	return QueuePushPrefix + driverID
}

// SentNow stamps an Envelope for an outgoing message.
func SentNow(producer, correlationID string) Envelope {
	return Envelope{
		CorrelationID: correlationID,
		Producer:      producer,
		SentAt:        time.Now().UTC(),
	}
}
