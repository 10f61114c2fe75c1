package driver

import (
	"errors"
	"strings"
)

// Availability is the driver-controlled online/offline state. It gates both
// order visibility and location broadcasting.
type Availability string

const (
	Offline   Availability = "OFFLINE"
	Available Availability = "AVAILABLE"
	Busy      Availability = "BUSY" // online with an active order
)

var ErrInvalidAvailability = errors.New("invalid driver availability")

// ParseAvailability normalizes and validates an availability string.
func ParseAvailability(in string) (Availability, error) {
	a := Availability(strings.ToUpper(strings.TrimSpace(in)))
	if a.Valid() {
		return a, nil
	}
	return "", ErrInvalidAvailability
}

// Valid reports whether the value is a known availability constant.
func (a Availability) Valid() bool {
	switch a {
	case Offline, Available, Busy:
		return true
	default:
		return false
	}
}

// Online reports whether the driver is working (location sampling allowed).
func (a Availability) Online() bool {
	return a == Available || a == Busy
}

// String returns the string representation of the Availability.
func (a Availability) String() string {
	return string(a)
}
