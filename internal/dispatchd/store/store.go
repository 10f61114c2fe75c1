package store

import (
	"context"
	"errors"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDriverNotFound = errors.New("driver not found")
)

// DriverState is what dispatchd persists per driver.
type DriverState struct {
	DriverID     string
	Availability driver.Availability
	Location     *geo.Point
	PushToken    string
}

// Store is the dispatchd persistence boundary. The memory implementation
// backs tests and broker-less dev runs; the Postgres one backs shared
// environments.
type Store interface {
	// SetAvailability flips a driver online/offline, creating the driver
	// record on first contact.
	SetAvailability(ctx context.Context, driverID string, av driver.Availability) error

	// SaveLocation stores the driver's last-known position.
	SaveLocation(ctx context.Context, driverID string, pt geo.Point) error

	// GetDriver returns the stored driver state.
	GetDriver(ctx context.Context, driverID string) (*DriverState, error)

	// SavePushToken stores the driver's push token.
	SavePushToken(ctx context.Context, driverID, token string) error

	// PushTokens lists every stored (driverID, token) pair.
	PushTokens(ctx context.Context) (map[string]string, error)

	// CreateOrder inserts a new order.
	CreateOrder(ctx context.Context, o *order.Order) error

	// GetOrder fetches one order by id.
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)

	// AvailableOrders lists unassigned orders. When near is non-nil only
	// orders whose pickup point lies within radiusKm are returned.
	AvailableOrders(ctx context.Context, near *geo.Point, radiusKm float64) ([]order.Order, error)

	// OrdersByDriver lists the orders assigned to one driver, newest first.
	OrdersByDriver(ctx context.Context, driverID string) ([]order.Order, error)

	// TransitionOrder applies a state change atomically: the order is loaded,
	// apply mutates it, and the result is persisted, all under the store's
	// concurrency control. An apply error aborts without persisting.
	TransitionOrder(ctx context.Context, orderID string, apply func(*order.Order) error) (*order.Order, error)

	// RememberKey records an idempotency key, reporting whether this is its
	// first use.
	RememberKey(ctx context.Context, key string) (bool, error)
}
