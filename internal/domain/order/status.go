package order

import (
	"errors"
	"strings"
)

// Status is a client-visible order status.
type Status string

const (
	StatusAvailable      Status = "AVAILABLE"        // visible to the driver pool, unclaimed
	StatusAssigned       Status = "ASSIGNED"         // claimed by a driver, pickup pending
	StatusPickedUp       Status = "PICKED_UP"        // garments in the driver's possession
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY" // en route to the customer
	StatusDelivered      Status = "DELIVERED"        // terminal success
	StatusCancelled      Status = "CANCELLED"        // terminal, external only
	StatusFailed         Status = "FAILED"           // terminal, external only
)

var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed order status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusAvailable, StatusAssigned, StatusPickedUp, StatusOutForDelivery,
		StatusDelivered, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// CANCELLED and FAILED are reachable from any non-terminal state but are
// never initiated by the driver client.
func (status Status) CanTransitionTo(next Status) bool {
	if next == StatusCancelled || next == StatusFailed {
		return !status.Terminal()
	}

	switch status {
	case StatusAvailable:
		return next == StatusAssigned
	case StatusAssigned:
		return next == StatusPickedUp
	case StatusPickedUp:
		return next == StatusOutForDelivery || next == StatusDelivered
	case StatusOutForDelivery:
		return next == StatusDelivered
	default:
		return false
	}
}

// Terminal indicates if the status is a terminal state.
func (status Status) Terminal() bool {
	return status == StatusDelivered || status == StatusCancelled || status == StatusFailed
}
