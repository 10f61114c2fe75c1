package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
)

// Memory is the in-process Store. Default for dev runs and the test suite.
type Memory struct {
	mu      sync.Mutex
	drivers map[string]*DriverState
	orders  map[string]*order.Order
	seq     []string // order ids in insertion order, for stable listings
	keys    map[string]struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		drivers: make(map[string]*DriverState),
		orders:  make(map[string]*order.Order),
		keys:    make(map[string]struct{}),
	}
}

func (m *Memory) driverLocked(driverID string) *DriverState {
	d, ok := m.drivers[driverID]
	if !ok {
		d = &DriverState{DriverID: driverID, Availability: driver.Offline}
		m.drivers[driverID] = d
	}
	return d
}

func (m *Memory) SetAvailability(ctx context.Context, driverID string, av driver.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driverLocked(driverID).Availability = av
	return nil
}

func (m *Memory) SaveLocation(ctx context.Context, driverID string, pt geo.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pt
	m.driverLocked(driverID).Location = &p
	return nil
}

func (m *Memory) GetDriver(ctx context.Context, driverID string) (*DriverState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, ErrDriverNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) SavePushToken(ctx context.Context, driverID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driverLocked(driverID).PushToken = token
	return nil
}

func (m *Memory) PushTokens(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for id, d := range m.drivers {
		if d.PushToken != "" {
			out[id] = d.PushToken
		}
	}
	return out, nil
}

func (m *Memory) CreateOrder(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	m.seq = append(m.seq, o.ID)
	return nil
}

func (m *Memory) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *Memory) AvailableOrders(ctx context.Context, near *geo.Point, radiusKm float64) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []order.Order
	for _, id := range m.seq {
		o := m.orders[id]
		if o.Status != order.StatusAvailable {
			continue
		}
		if near != nil && radiusKm > 0 {
			pickup := geo.Point{Latitude: o.PickupLatitude, Longitude: o.PickupLongitude}
			if geo.DistanceMeters(*near, pickup) > radiusKm*1000 {
				continue
			}
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *Memory) OrdersByDriver(ctx context.Context, driverID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []order.Order
	for _, id := range m.seq {
		o := m.orders[id]
		if o.DriverID != nil && *o.DriverID == driverID {
			out = append(out, *o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) TransitionOrder(ctx context.Context, orderID string, apply func(*order.Order) error) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	cp := *o
	if err := apply(&cp); err != nil {
		return nil, err
	}
	m.orders[orderID] = &cp

	res := cp
	return &res, nil
}

func (m *Memory) RememberKey(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.keys[key]; seen {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}
