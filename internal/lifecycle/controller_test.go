package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/realtime"
)

// fakeAPI serves scripted lists and scripted transition outcomes, counting
// every call.
type fakeAPI struct {
	mu        sync.Mutex
	available []order.Order
	active    []order.Order
	acceptErr error
	fetches   int
	accepts   int
}

func (f *fakeAPI) AvailableOrders(ctx context.Context, driverID string, radiusKm float64) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return append([]order.Order(nil), f.available...), nil
}

func (f *fakeAPI) ActiveOrders(ctx context.Context, driverID string) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]order.Order(nil), f.active...), nil
}

func (f *fakeAPI) AcceptOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepts++
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	// server-side effect: the order moves lists
	f.available = nil
	o := order.Order{ID: orderID, Status: order.StatusAssigned, DriverID: &driverID}
	f.active = []order.Order{o}
	return &o, nil
}

func (f *fakeAPI) PickupOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := order.Order{ID: orderID, Status: order.StatusPickedUp, DriverID: &driverID}
	f.active = []order.Order{o}
	return &o, nil
}

func (f *fakeAPI) DeliverOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := order.Order{ID: orderID, Status: order.StatusDelivered, DriverID: &driverID}
	f.active = []order.Order{o}
	return &o, nil
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type scriptedConfirmer struct {
	answer bool
	asked  int
}

func (s *scriptedConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	s.asked++
	return s.answer, nil
}

// fakeSubscriber lets the test fire realtime events by hand.
type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string][]realtime.Handler
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string][]realtime.Handler)}
}

func (f *fakeSubscriber) On(event string, h realtime.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
	return func() {}
}

func (f *fakeSubscriber) fire(event string, data json.RawMessage) {
	f.mu.Lock()
	hs := append([]realtime.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

func newTestController(api *fakeAPI, confirm *scriptedConfirmer) *Controller {
	return NewController(api, logger.New("lifecycle-test"), confirm, "driver-1", 10)
}

func waitFetches(t *testing.T, api *fakeAPI, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if api.fetchCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d fetches, got %d", want, api.fetchCount())
}

func TestAcceptHappyPath(t *testing.T) {
	api := &fakeAPI{available: []order.Order{{ID: "ord-1", Status: order.StatusAvailable}}}
	confirm := &scriptedConfirmer{answer: true}
	c := newTestController(api, confirm)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(c.Available()) != 1 {
		t.Fatalf("expected 1 available order, got %d", len(c.Available()))
	}

	o, err := c.Accept(context.Background(), "ord-1", "ring the bell")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != order.StatusAssigned {
		t.Errorf("expected ASSIGNED, got %s", o.Status)
	}
	if confirm.asked != 1 {
		t.Errorf("expected exactly one confirmation prompt, got %d", confirm.asked)
	}

	// caches follow the server after the ack
	if len(c.Available()) != 0 {
		t.Errorf("accepted order still listed as available")
	}
	if got := c.ActiveOrderID(); got != "ord-1" {
		t.Errorf("expected active order ord-1, got %q", got)
	}
}

func TestDeclineSkipsTheServerCall(t *testing.T) {
	api := &fakeAPI{available: []order.Order{{ID: "ord-1", Status: order.StatusAvailable}}}
	confirm := &scriptedConfirmer{answer: false}
	c := newTestController(api, confirm)
	c.Refresh(context.Background())

	_, err := c.Accept(context.Background(), "ord-1", "")
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if api.accepts != 0 {
		t.Error("declined action must not reach the server")
	}
	if len(c.Available()) != 1 {
		t.Error("caches changed on a declined action")
	}
}

func TestServerRejectionLeavesCachesUntouched(t *testing.T) {
	api := &fakeAPI{
		available: []order.Order{{ID: "ord-1", Status: order.StatusAvailable}},
		acceptErr: errors.New("Order already assigned to another driver"),
	}
	confirm := &scriptedConfirmer{answer: true}
	c := newTestController(api, confirm)
	c.Refresh(context.Background())
	before := api.fetchCount()

	_, err := c.Accept(context.Background(), "ord-1", "")
	if err == nil || err.Error() != "Order already assigned to another driver" {
		t.Fatalf("expected the server's reason verbatim, got %v", err)
	}

	if len(c.Available()) != 1 || len(c.Active()) != 0 {
		t.Error("caches changed after a rejected transition")
	}
	if api.fetchCount() != before {
		t.Error("rejected transition must not trigger a refresh")
	}
}

func TestPickupAndDeliver(t *testing.T) {
	api := &fakeAPI{}
	confirm := &scriptedConfirmer{answer: true}
	c := newTestController(api, confirm)

	o, err := c.MarkPickedUp(context.Background(), "ord-2", "")
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != order.StatusPickedUp {
		t.Errorf("expected PICKED_UP, got %s", o.Status)
	}

	o, err = c.MarkDelivered(context.Background(), "ord-2", "left at door")
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != order.StatusDelivered {
		t.Errorf("expected DELIVERED, got %s", o.Status)
	}

	// a delivered order no longer counts as the active one
	if got := c.ActiveOrderID(); got != "" {
		t.Errorf("terminal order still reported active: %q", got)
	}
}

func TestEventsInvalidateCaches(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(api, &scriptedConfirmer{answer: true})
	sub := newFakeSubscriber()
	c.Bind(sub)
	defer c.Unbind()

	payload, _ := json.Marshal(contracts.OrderEvent{OrderID: "ord-3", Status: "ASSIGNED"})
	sub.fire(contracts.EventOrderAssigned, payload)
	waitFetches(t, api, 1)

	sub.fire(contracts.EventOrderStatusChanged, payload)
	waitFetches(t, api, 2)

	sub.fire(contracts.EventOrderAvailable, nil)
	waitFetches(t, api, 3)
}

func TestMalformedEventStillTriggersOneRefetch(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(api, &scriptedConfirmer{answer: true})
	sub := newFakeSubscriber()
	c.Bind(sub)
	defer c.Unbind()

	sub.fire(contracts.EventOrderStatusChanged, json.RawMessage(`{"this is": not json`))
	waitFetches(t, api, 1)

	// and nothing beyond the one re-fetch
	time.Sleep(50 * time.Millisecond)
	if api.fetchCount() != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", api.fetchCount())
	}
}
