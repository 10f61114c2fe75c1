package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
)

func seedOrder(t *testing.T, m *Memory, id string, lat, lon float64) {
	t.Helper()
	o, err := order.NewOrder(id, "DJ-"+id, "Customer", "Pickup St 1", "Delivery Ave 2", 3)
	if err != nil {
		t.Fatal(err)
	}
	o.PickupLatitude = lat
	o.PickupLongitude = lon
	if err := m.CreateOrder(context.Background(), o); err != nil {
		t.Fatal(err)
	}
}

func TestAvailableOrdersRadiusFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	seedOrder(t, m, "near", 52.5200, 13.4050)
	seedOrder(t, m, "far", 53.5511, 9.9937) // Hamburg, ~255km away

	here := &geo.Point{Latitude: 52.5200, Longitude: 13.4050}
	got, err := m.AvailableOrders(ctx, here, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "near" {
		t.Errorf("expected only the nearby order, got %+v", got)
	}

	// no location: everything available is listed
	got, err = m.AvailableOrders(ctx, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 orders without a location filter, got %d", len(got))
	}
}

func TestTransitionOrderIsAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedOrder(t, m, "ord-1", 52.52, 13.405)

	// only one of two concurrent accepts can win
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, d := range []string{"driver-a", "driver-b"} {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.TransitionOrder(ctx, "ord-1", func(o *order.Order) error {
				return o.Assign(d)
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, order.ErrAlreadyAssigned):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Errorf("expected 1 win and 1 conflict, got %d/%d", wins, conflicts)
	}
}

func TestTransitionFailureLeavesOrderUntouched(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedOrder(t, m, "ord-1", 52.52, 13.405)

	_, err := m.TransitionOrder(ctx, "ord-1", func(o *order.Order) error {
		o.Status = order.StatusDelivered // mutation before the failure
		return errors.New("validation failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	o, err := m.GetOrder(ctx, "ord-1")
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != order.StatusAvailable {
		t.Errorf("aborted transition leaked: status %s", o.Status)
	}
}

func TestRememberKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.RememberKey(ctx, "key-1")
	if err != nil || !first {
		t.Errorf("expected first use, got first=%v err=%v", first, err)
	}
	again, err := m.RememberKey(ctx, "key-1")
	if err != nil || again {
		t.Errorf("expected replay detection, got first=%v err=%v", again, err)
	}
}

func TestDriverStateRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetDriver(ctx, "driver-1"); !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("expected ErrDriverNotFound, got %v", err)
	}

	m.SetAvailability(ctx, "driver-1", driver.Available)
	m.SaveLocation(ctx, "driver-1", geo.Point{Latitude: 52.52, Longitude: 13.405})
	m.SavePushToken(ctx, "driver-1", "push.driver.driver-1")

	d, err := m.GetDriver(ctx, "driver-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Availability != driver.Available || d.Location == nil || d.PushToken != "push.driver.driver-1" {
		t.Errorf("state not persisted: %+v", d)
	}

	tokens, err := m.PushTokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tokens["driver-1"] != "push.driver.driver-1" {
		t.Errorf("push token missing from listing: %v", tokens)
	}
}
