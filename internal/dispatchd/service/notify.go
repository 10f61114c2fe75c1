package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
)

// notifyDriver pushes one notification to a single driver's queue. Push is
// best-effort everywhere: failures are logged and swallowed.
func (s *Service) notifyDriver(ctx context.Context, driverID, title, body, orderID string) {
	if s.notifier == nil {
		return
	}

	n := contracts.Notification{
		ID:    uuid.NewString(),
		Title: title,
		Body:  body,
	}
	if orderID != "" {
		n.Data = map[string]string{contracts.NotificationDataOrderID: orderID}
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := s.notifier.Publish(contracts.ExchangePushTopic, contracts.PushQueueName(driverID), payload); err != nil {
		s.log.Warn(ctx, "push_publish_failed", "notification not delivered",
			map[string]string{"driver_id": driverID, "error": err.Error()})
	}
}

// notifyRegistered fans one notification out to every driver that stored a
// push token.
func (s *Service) notifyRegistered(ctx context.Context, title, body, orderID string) {
	if s.notifier == nil {
		return
	}

	tokens, err := s.store.PushTokens(ctx)
	if err != nil {
		s.log.Warn(ctx, "push_fanout_failed", "could not list push tokens",
			map[string]string{"error": err.Error()})
		return
	}
	for driverID := range tokens {
		s.notifyDriver(ctx, driverID, title, body, orderID)
	}
}
