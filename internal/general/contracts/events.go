package contracts

import (
	"encoding/json"
	"time"
)

// Server -> client events on the /events namespace. Payloads are treated as
// opaque invalidation signals by the client; shapes below are what dispatchd
// produces.
const (
	EventOrderAssigned      = "order:assigned"
	EventOrderStatusChanged = "order:statusChanged"
	EventOrderAvailable     = "order:available"
	EventNotification       = "notification"
	EventDriverLocation     = "driver:locationUpdate"
)

// Client -> server messages on the /events namespace.
const (
	MsgSubscribeDriver      = "subscribeToDriver"
	MsgSubscribeOrder       = "subscribeToOrder"
	MsgDriverLocationUpdate = "driverLocationUpdate"
)

// Frame is the envelope every message on the realtime channel travels in.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals payload into a Frame. Marshal errors surface to the
// caller; an event with no payload passes nil.
func NewFrame(event string, payload any) (Frame, error) {
	f := Frame{Event: event}
	if payload == nil {
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	f.Data = data
	return f, nil
}

// SubscribeDriver asks the server to route this driver's events to the
// current connection. Re-sent after every reconnect: server-side room
// membership does not survive a dropped connection.
type SubscribeDriver struct {
	DriverID string `json:"driver_id"`
	Envelope
}

// SubscribeOrder asks for live location updates of one order.
type SubscribeOrder struct {
	OrderID string `json:"order_id"`
	Envelope
}

// DriverLocation is the best-effort realtime location sample. The durable
// copy of the same sample goes through REST.
type DriverLocation struct {
	DriverID  string    `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	OrderID   string    `json:"order_id,omitempty"` // active order, when any
	Timestamp time.Time `json:"timestamp"`
	Envelope
}

// OrderEvent is the payload dispatchd attaches to order:* events.
type OrderEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status,omitempty"`
	Envelope
}

// LocationAck is the payload of driver:locationUpdate sent back to the
// producing driver.
type LocationAck struct {
	DriverID   string    `json:"driver_id"`
	ReceivedAt time.Time `json:"received_at"`
	Envelope
}
