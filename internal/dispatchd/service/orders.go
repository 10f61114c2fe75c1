package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

// CreateOrderInput is what a dispatcher submits to seed a new order.
type CreateOrderInput struct {
	OrderNumber     string  `json:"order_number"`
	CustomerName    string  `json:"customer_name"`
	PickupAddress   string  `json:"pickup_address"`
	DeliveryAddress string  `json:"delivery_address"`
	GarmentCount    int     `json:"garment_count"`
	PickupLatitude  float64 `json:"pickup_latitude"`
	PickupLongitude float64 `json:"pickup_longitude"`
}

// CreateOrder inserts a new order into the pool, announces it on the
// realtime channel, and pushes a notification to every registered driver.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error) {
	o, err := order.NewOrder(uuid.NewString(), in.OrderNumber, in.CustomerName,
		in.PickupAddress, in.DeliveryAddress, in.GarmentCount)
	if err != nil {
		return nil, err
	}
	o.PickupLatitude = in.PickupLatitude
	o.PickupLongitude = in.PickupLongitude

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	ctx = logger.WithOrderID(ctx, o.ID)
	s.log.Info(ctx, "order_created", "order entered the pool", map[string]string{
		"order_number": o.OrderNumber,
	})

	s.hub.Broadcast(contracts.EventOrderAvailable, s.orderEvent(ctx, o))
	s.notifyRegistered(ctx, "New order available", "Order "+o.OrderNumber+" is up for grabs", o.ID)

	return o, nil
}

// Accept assigns an available order to the driver. A replayed idempotency
// key returns the current order state without re-running the transition.
func (s *Service) Accept(ctx context.Context, driverID, orderID, notes, idemKey string) (*order.Order, error) {
	if replay, o, err := s.checkReplay(ctx, orderID, idemKey); replay {
		return o, err
	}

	o, err := s.store.TransitionOrder(ctx, orderID, func(o *order.Order) error {
		if err := o.Assign(driverID); err != nil {
			return err
		}
		applyNotes(o, notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithOrderID(ctx, orderID)
	s.log.Info(ctx, "order_assigned", "order claimed", map[string]string{"driver_id": driverID})

	// the winning driver is busy now
	if err := s.store.SetAvailability(ctx, driverID, driver.Busy); err != nil {
		s.log.Warn(ctx, "availability_update_failed", "could not mark driver busy",
			map[string]string{"error": err.Error()})
	}

	ev := s.orderEvent(ctx, o)
	s.hub.EmitToDriver(driverID, contracts.EventOrderAssigned, ev)
	s.hub.EmitToOrder(orderID, contracts.EventOrderStatusChanged, ev)
	// the pool shrank; everyone else refreshes their available list
	s.hub.Broadcast(contracts.EventOrderAvailable, ev)
	s.notifyDriver(ctx, driverID, "Order assigned", "You picked up order "+o.OrderNumber, o.ID)

	return o, nil
}

// Pickup marks the garments as collected.
func (s *Service) Pickup(ctx context.Context, driverID, orderID, notes, idemKey string) (*order.Order, error) {
	if replay, o, err := s.checkReplay(ctx, orderID, idemKey); replay {
		return o, err
	}

	o, err := s.store.TransitionOrder(ctx, orderID, func(o *order.Order) error {
		if err := o.MarkPickedUp(driverID); err != nil {
			return err
		}
		applyNotes(o, notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithOrderID(ctx, orderID)
	s.log.Info(ctx, "order_picked_up", "pickup confirmed", map[string]string{"driver_id": driverID})

	ev := s.orderEvent(ctx, o)
	s.hub.EmitToDriver(driverID, contracts.EventOrderStatusChanged, ev)
	s.hub.EmitToOrder(orderID, contracts.EventOrderStatusChanged, ev)

	return o, nil
}

// Deliver completes the order. A driver with nothing left in flight drops
// back from BUSY to AVAILABLE.
func (s *Service) Deliver(ctx context.Context, driverID, orderID, notes, idemKey string) (*order.Order, error) {
	if replay, o, err := s.checkReplay(ctx, orderID, idemKey); replay {
		return o, err
	}

	o, err := s.store.TransitionOrder(ctx, orderID, func(o *order.Order) error {
		if err := o.MarkDelivered(driverID); err != nil {
			return err
		}
		applyNotes(o, notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithOrderID(ctx, orderID)
	s.log.Info(ctx, "order_delivered", "delivery confirmed", map[string]string{"driver_id": driverID})

	if !s.hasLiveOrder(ctx, driverID) {
		if err := s.store.SetAvailability(ctx, driverID, driver.Available); err != nil {
			s.log.Warn(ctx, "availability_update_failed", "could not mark driver available",
				map[string]string{"error": err.Error()})
		}
	}

	ev := s.orderEvent(ctx, o)
	s.hub.EmitToDriver(driverID, contracts.EventOrderStatusChanged, ev)
	s.hub.EmitToOrder(orderID, contracts.EventOrderStatusChanged, ev)

	return o, nil
}

// checkReplay reports whether idemKey was already used; on replay the
// current order state is returned instead of re-running the transition.
func (s *Service) checkReplay(ctx context.Context, orderID, idemKey string) (bool, *order.Order, error) {
	if strings.TrimSpace(idemKey) == "" {
		return false, nil, nil
	}
	first, err := s.store.RememberKey(ctx, idemKey)
	if err != nil {
		s.log.Warn(ctx, "idempotency_check_failed", "treating request as fresh",
			map[string]string{"error": err.Error()})
		return false, nil, nil
	}
	if first {
		return false, nil, nil
	}

	s.log.Info(ctx, "idempotent_replay", "duplicate request absorbed", map[string]string{"key": idemKey})
	o, err := s.store.GetOrder(ctx, orderID)
	return true, o, err
}

func (s *Service) orderEvent(ctx context.Context, o *order.Order) contracts.OrderEvent {
	return contracts.OrderEvent{
		OrderID:  o.ID,
		Status:   o.Status.String(),
		Envelope: contracts.SentNow("dispatchd", logger.RequestID(ctx)),
	}
}

// applyNotes records the driver's free-text note on the order, if any.
func applyNotes(o *order.Order, notes string) {
	if n := strings.TrimSpace(notes); n != "" {
		o.Notes = &n
	}
}
