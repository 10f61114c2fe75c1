package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/realtime"
)

// ErrDeclined means the driver answered no at the confirmation prompt. The
// transition was never submitted.
var ErrDeclined = errors.New("action declined by driver")

// API is the slice of the REST client the controller needs.
type API interface {
	AvailableOrders(ctx context.Context, driverID string, radiusKm float64) ([]order.Order, error)
	ActiveOrders(ctx context.Context, driverID string) ([]order.Order, error)
	AcceptOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error)
	PickupOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error)
	DeliverOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error)
}

// Confirmer asks the human driver before a transition is submitted. Every
// state change requires a yes: there is no auto-accept.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Subscriber registers realtime listeners. Satisfied by *realtime.Client.
type Subscriber interface {
	On(event string, h realtime.Handler) func()
}

// Controller owns the driver's view of the order pool: a cached list of
// available orders and a cached list of this driver's active orders. Caches
// change only after the server acknowledged a transition or pushed an
// invalidation event; an optimistic local update never happens.
type Controller struct {
	api      API
	log      *logger.Logger
	confirm  Confirmer
	driverID string
	radiusKm float64

	mu        sync.Mutex
	available []order.Order
	active    []order.Order
	offs      []func()
}

// NewController builds a controller with empty caches.
func NewController(api API, log *logger.Logger, confirm Confirmer, driverID string, radiusKm float64) *Controller {
	return &Controller{
		api:      api,
		log:      log,
		confirm:  confirm,
		driverID: driverID,
		radiusKm: radiusKm,
	}
}

// Refresh re-fetches both lists from the server and swaps the caches. On any
// fetch error the caches keep their previous contents.
func (c *Controller) Refresh(ctx context.Context) error {
	available, err := c.api.AvailableOrders(ctx, c.driverID, c.radiusKm)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	active, err := c.api.ActiveOrders(ctx, c.driverID)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	c.mu.Lock()
	c.available = available
	c.active = active
	c.mu.Unlock()

	c.log.Debug(ctx, "orders_refreshed", "order caches updated", map[string]int{
		"available": len(available),
		"active":    len(active),
	})
	return nil
}

// Available returns a copy of the cached available-order list.
func (c *Controller) Available() []order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]order.Order, len(c.available))
	copy(out, c.available)
	return out
}

// Active returns a copy of the cached active-order list.
func (c *Controller) Active() []order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]order.Order, len(c.active))
	copy(out, c.active)
	return out
}

// ActiveOrderID returns the id of the first non-terminal active order, or ""
// when the driver is idle. The location broadcaster tags realtime samples
// with it.
func (c *Controller) ActiveOrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.active {
		if !o.Status.Terminal() {
			return o.ID
		}
	}
	return ""
}

// Accept claims an available order: driver confirmation first, then the
// server call, then a cache refresh. The caches are untouched when either
// the driver declines or the server rejects.
func (c *Controller) Accept(ctx context.Context, orderID, notes string) (*order.Order, error) {
	return c.transition(ctx, orderID, notes, "Accept order", c.api.AcceptOrder)
}

// MarkPickedUp records that the garments are in the driver's possession.
func (c *Controller) MarkPickedUp(ctx context.Context, orderID, notes string) (*order.Order, error) {
	return c.transition(ctx, orderID, notes, "Confirm pickup of order", c.api.PickupOrder)
}

// MarkDelivered completes the order.
func (c *Controller) MarkDelivered(ctx context.Context, orderID, notes string) (*order.Order, error) {
	return c.transition(ctx, orderID, notes, "Confirm delivery of order", c.api.DeliverOrder)
}

type transitionCall func(ctx context.Context, driverID, orderID, notes string) (*order.Order, error)

func (c *Controller) transition(ctx context.Context, orderID, notes, prompt string, call transitionCall) (*order.Order, error) {
	ctx = logger.WithOrderID(ctx, orderID)

	ok, err := c.confirm.Confirm(ctx, fmt.Sprintf("%s %s?", prompt, orderID))
	if err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		c.log.Info(ctx, "order_action_declined", "driver declined", nil)
		return nil, ErrDeclined
	}

	updated, err := call(ctx, c.driverID, orderID, notes)
	if err != nil {
		// server said no: nothing changed locally, the reason goes up verbatim
		c.log.Warn(ctx, "order_action_rejected", "server rejected transition", map[string]string{
			"error": err.Error(),
		})
		return nil, err
	}

	c.log.Info(ctx, "order_action_acknowledged", "server acknowledged transition", map[string]string{
		"status": updated.Status.String(),
	})

	// the ack is authoritative; the refresh just brings the caches in line
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn(ctx, "refresh_after_action_failed", "cache refresh failed after ack", map[string]string{
			"error": err.Error(),
		})
	}
	return updated, nil
}

// Bind subscribes the controller to the order events. Each event is a pure
// invalidation signal: the payload is only logged, the reaction is always
// one full re-fetch, malformed payloads included.
func (c *Controller) Bind(sub Subscriber) {
	events := []string{
		contracts.EventOrderAssigned,
		contracts.EventOrderStatusChanged,
		contracts.EventOrderAvailable,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range events {
		ev := ev
		c.offs = append(c.offs, sub.On(ev, func(data json.RawMessage) {
			go c.invalidate(ev, data)
		}))
	}
}

// Unbind releases the realtime subscriptions taken by Bind.
func (c *Controller) Unbind() {
	c.mu.Lock()
	offs := c.offs
	c.offs = nil
	c.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

func (c *Controller) invalidate(event string, data json.RawMessage) {
	ctx := context.Background()

	var ev contracts.OrderEvent
	if err := json.Unmarshal(data, &ev); err == nil && ev.OrderID != "" {
		ctx = logger.WithOrderID(ctx, ev.OrderID)
	}
	c.log.Debug(ctx, "order_event_received", event, nil)

	if err := c.Refresh(ctx); err != nil {
		c.log.Warn(ctx, "event_refresh_failed", "re-fetch after "+event+" failed", map[string]string{
			"error": err.Error(),
		})
	}
}
