package contracts

// REST request/response bodies for the driver API.
// Paths (verbs must be preserved):
//
//	PATCH /drivers/{id}/availability
//	PATCH /drivers/{id}/location
//	GET   /drivers/{id}/available-orders?radius_km=
//	GET   /drivers/{id}/orders
//	POST  /drivers/{id}/orders/{order_id}/accept
//	POST  /drivers/{id}/orders/{order_id}/pickup
//	POST  /drivers/{id}/orders/{order_id}/deliver
//	POST  /drivers/{id}/push-token

// HeaderIdempotencyKey carries the per-intent key on state-changing POSTs,
// so a retry after a timeout cannot double-submit.
const HeaderIdempotencyKey = "Idempotency-Key"

type AvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

type AvailabilityResponse struct {
	Status string `json:"status"` // OFFLINE | AVAILABLE | BUSY
}

type LocationPatchRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Status    string  `json:"status"`
}

type OrderActionRequest struct {
	Notes string `json:"notes,omitempty"`
}

type PushTokenRequest struct {
	Token string `json:"token"`
}

// ErrorResponse is the error body every endpoint returns on failure. The
// message is surfaced verbatim to the driver for rejected transitions.
type ErrorResponse struct {
	Error string `json:"error"`
}
