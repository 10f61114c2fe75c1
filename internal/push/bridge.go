package push

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

// Registrar stores the push token server-side. Satisfied by the REST client.
type Registrar interface {
	RegisterPushToken(ctx context.Context, driverID, token string) error
}

// Broker is the slice of the RabbitMQ client the bridge needs.
type Broker interface {
	EnsureDriverQueue(driverID string) (string, error)
	Consume(ctx context.Context, queue, consumerTag string, prefetch int,
		handler func(context.Context, amqp.Delivery) error) error
}

// Bridge is the driver's push notification channel: a durable per-driver
// queue on the broker, with the queue name doubling as the push token the
// server targets. Push is strictly optional; every failure here degrades to
// "no push" and the realtime channel keeps carrying the same signals.
type Bridge struct {
	log      *logger.Logger
	broker   Broker
	api      Registrar
	driverID string

	// refresh is invoked when a notification payload names an order; the
	// notification itself is only a nudge to re-fetch.
	refresh func(ctx context.Context, orderID string)

	token string
}

// NewBridge wires a bridge. broker may be nil when push is disabled; refresh
// may be nil.
func NewBridge(log *logger.Logger, broker Broker, api Registrar, driverID string,
	refresh func(ctx context.Context, orderID string)) *Bridge {
	if refresh == nil {
		refresh = func(context.Context, string) {}
	}
	return &Bridge{log: log, broker: broker, api: api, driverID: driverID, refresh: refresh}
}

// Register creates the driver's notification queue and stores its name as
// the push token server-side. It never returns an error: a broker that is
// down or a failed registration call leaves the driver without push,
// logged, and nothing else.
func (b *Bridge) Register(ctx context.Context) string {
	if b.broker == nil {
		b.log.Warn(ctx, "push_unavailable", "push broker not configured, continuing without push", nil)
		return ""
	}

	queue, err := b.broker.EnsureDriverQueue(b.driverID)
	if err != nil {
		b.log.Warn(ctx, "push_register_failed", "could not create notification queue, continuing without push",
			map[string]string{"error": err.Error()})
		return ""
	}

	// the server targets this driver by routing key == queue name, so a
	// failed token upload still leaves local consumption working
	if err := b.api.RegisterPushToken(ctx, b.driverID, queue); err != nil {
		b.log.Warn(ctx, "push_token_upload_failed", "push token not stored server-side",
			map[string]string{"error": err.Error()})
	}

	b.token = queue
	b.log.Info(ctx, "push_registered", "push notifications enabled", map[string]string{"token": queue})
	return queue
}

// Token returns the registered push token ("" when push is off).
func (b *Bridge) Token() string { return b.token }

// Run consumes notifications until ctx is cancelled. A no-op when
// registration did not produce a token.
func (b *Bridge) Run(ctx context.Context) error {
	if b.token == "" {
		return nil
	}
	return b.broker.Consume(ctx, b.token, "push-"+b.driverID, 1, b.handle)
}

func (b *Bridge) handle(ctx context.Context, d amqp.Delivery) error {
	var n contracts.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}

	orderID := n.Data[contracts.NotificationDataOrderID]
	if orderID != "" {
		ctx = logger.WithOrderID(ctx, orderID)
	}
	b.log.Info(ctx, "notification_received", n.Title, map[string]string{"body": n.Body})

	if orderID != "" {
		b.refresh(ctx, orderID)
	}
	return nil
}
