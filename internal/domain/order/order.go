package order

import (
	"errors"
	"strings"
	"time"
)

// Order is a dry-cleaning pickup/delivery order as seen by the driver client.
// The shape doubles as the REST wire format.
type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`

	CustomerName    string `json:"customer_name"`
	PickupAddress   string `json:"pickup_address"`
	DeliveryAddress string `json:"delivery_address"`
	GarmentCount    int    `json:"garment_count"`

	Status   Status  `json:"status"`
	DriverID *string `json:"driver_id,omitempty"` // nil until assigned
	Notes    *string `json:"notes,omitempty"`

	PickupLatitude  float64 `json:"pickup_latitude"`
	PickupLongitude float64 `json:"pickup_longitude"`

	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

var (
	ErrOrderNumberRequired     = errors.New("order number is required")
	ErrCustomerRequired        = errors.New("customer name is required")
	ErrGarmentCountInvalid     = errors.New("garment count must be >= 1")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrAlreadyAssigned         = errors.New("order already assigned to another driver")
	ErrNotAssignedToDriver     = errors.New("order is not assigned to this driver")
)

// NewOrder creates an unclaimed order in AVAILABLE state.
func NewOrder(id, orderNumber, customerName, pickupAddress, deliveryAddress string, garmentCount int) (*Order, error) {
	if orderNumber = strings.TrimSpace(orderNumber); orderNumber == "" {
		return nil, ErrOrderNumberRequired
	}
	if customerName = strings.TrimSpace(customerName); customerName == "" {
		return nil, ErrCustomerRequired
	}
	if garmentCount < 1 {
		return nil, ErrGarmentCountInvalid
	}
	return &Order{
		ID:              id,
		OrderNumber:     orderNumber,
		CustomerName:    customerName,
		PickupAddress:   strings.TrimSpace(pickupAddress),
		DeliveryAddress: strings.TrimSpace(deliveryAddress),
		GarmentCount:    garmentCount,
		Status:          StatusAvailable,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Assign claims the order for a driver. Fails when the order has already
// been claimed (the race two drivers accepting the same order).
func (o *Order) Assign(driverID string) error {
	if o.DriverID != nil && *o.DriverID != driverID {
		return ErrAlreadyAssigned
	}
	if !o.Status.CanTransitionTo(StatusAssigned) {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	o.Status = StatusAssigned
	o.DriverID = &driverID
	o.AssignedAt = &now
	return nil
}

// MarkPickedUp records the pickup confirmation for the assigned driver.
func (o *Order) MarkPickedUp(driverID string) error {
	if o.DriverID == nil || *o.DriverID != driverID {
		return ErrNotAssignedToDriver
	}
	if !o.Status.CanTransitionTo(StatusPickedUp) {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	o.Status = StatusPickedUp
	o.PickedUpAt = &now
	return nil
}

// MarkDelivered records the delivery confirmation for the assigned driver.
func (o *Order) MarkDelivered(driverID string) error {
	if o.DriverID == nil || *o.DriverID != driverID {
		return ErrNotAssignedToDriver
	}
	if !o.Status.CanTransitionTo(StatusDelivered) {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	return nil
}
