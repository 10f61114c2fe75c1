package service

import (
	"context"
	"fmt"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/hub"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/store"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

// Notifier publishes push notifications to the broker. Satisfied by the
// RabbitMQ client; nil disables push entirely.
type Notifier interface {
	Publish(exchange, routingKey string, body []byte) error
}

// Service is the dispatch logic behind the REST and websocket surfaces.
type Service struct {
	log             *logger.Logger
	store           store.Store
	hub             *hub.Hub
	notifier        Notifier
	defaultRadiusKm float64
}

// New wires the dispatch service. notifier may be nil.
func New(log *logger.Logger, st store.Store, h *hub.Hub, notifier Notifier, defaultRadiusKm float64) *Service {
	return &Service{log: log, store: st, hub: h, notifier: notifier, defaultRadiusKm: defaultRadiusKm}
}

// SetAvailability flips a driver online or offline. An online driver with a
// live order comes back as BUSY.
func (s *Service) SetAvailability(ctx context.Context, driverID string, available bool) (driver.Availability, error) {
	av := driver.Offline
	if available {
		av = driver.Available
		if s.hasLiveOrder(ctx, driverID) {
			av = driver.Busy
		}
	}

	if err := s.store.SetAvailability(ctx, driverID, av); err != nil {
		return driver.Offline, fmt.Errorf("set availability: %w", err)
	}

	s.log.Info(ctx, "driver_availability_changed", "driver is now "+av.String(),
		map[string]string{"driver_id": driverID})
	return av, nil
}

// SaveLocation persists the driver's last-known position (the durable sink
// of the client's dual location write).
func (s *Service) SaveLocation(ctx context.Context, driverID string, pt geo.Point) error {
	if err := pt.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveLocation(ctx, driverID, pt); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

// AvailableOrders lists unassigned orders around the driver's last-known
// position. Without a stored position the whole pool is returned.
func (s *Service) AvailableOrders(ctx context.Context, driverID string, radiusKm float64) ([]order.Order, error) {
	if radiusKm <= 0 {
		radiusKm = s.defaultRadiusKm
	}

	var near *geo.Point
	if d, err := s.store.GetDriver(ctx, driverID); err == nil {
		near = d.Location
	}

	orders, err := s.store.AvailableOrders(ctx, near, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("available orders: %w", err)
	}
	return orders, nil
}

// ActiveOrders lists the driver's non-terminal orders.
func (s *Service) ActiveOrders(ctx context.Context, driverID string) ([]order.Order, error) {
	all, err := s.store.OrdersByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("active orders: %w", err)
	}

	out := make([]order.Order, 0, len(all))
	for _, o := range all {
		if !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

// RegisterPushToken stores the driver's push token.
func (s *Service) RegisterPushToken(ctx context.Context, driverID, token string) error {
	if err := s.store.SavePushToken(ctx, driverID, token); err != nil {
		return fmt.Errorf("register push token: %w", err)
	}
	s.log.Info(ctx, "push_token_registered", "push token stored", map[string]string{"driver_id": driverID})
	return nil
}

func (s *Service) hasLiveOrder(ctx context.Context, driverID string) bool {
	orders, err := s.store.OrdersByDriver(ctx, driverID)
	if err != nil {
		return false
	}
	for _, o := range orders {
		if !o.Status.Terminal() {
			return true
		}
	}
	return false
}
