package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() string
}

// APIError is a non-2xx response. Message carries the server's error text
// verbatim so rejected transitions surface with the server's reason.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return e.Message
}

// Client is the driver REST API client. State-changing POSTs carry a fresh
// idempotency key per call, so a retry after a timeout cannot double-submit.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *logger.Logger
}

// New builds a client for the API at baseURL (no trailing slash needed).
func New(baseURL string, log *logger.Logger, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		tokens:  tokens,
		log:     log,
	}
}

// SetAvailability flips the driver online or offline and returns the
// resulting availability.
func (c *Client) SetAvailability(ctx context.Context, driverID string, available bool) (driver.Availability, error) {
	var resp contracts.AvailabilityResponse
	path := fmt.Sprintf("/drivers/%s/availability", url.PathEscape(driverID))
	if err := c.do(ctx, http.MethodPatch, path, contracts.AvailabilityRequest{IsAvailable: available}, &resp); err != nil {
		return driver.Offline, fmt.Errorf("set availability: %w", err)
	}

	av, err := driver.ParseAvailability(resp.Status)
	if err != nil {
		return driver.Offline, fmt.Errorf("set availability: %w", err)
	}
	return av, nil
}

// PatchLocation is the durable location sink: it stores the driver's
// last-known position server-side.
func (c *Client) PatchLocation(ctx context.Context, driverID string, pt geo.Point, status string) error {
	path := fmt.Sprintf("/drivers/%s/location", url.PathEscape(driverID))
	err := c.do(ctx, http.MethodPatch, path, contracts.LocationPatchRequest{
		Latitude:  pt.Latitude,
		Longitude: pt.Longitude,
		Status:    status,
	}, nil)
	if err != nil {
		return fmt.Errorf("patch location: %w", err)
	}
	return nil
}

// AvailableOrders lists unassigned orders within radiusKm of the driver.
func (c *Client) AvailableOrders(ctx context.Context, driverID string, radiusKm float64) ([]order.Order, error) {
	path := fmt.Sprintf("/drivers/%s/available-orders?radius_km=%s",
		url.PathEscape(driverID), strconv.FormatFloat(radiusKm, 'f', -1, 64))

	var out []order.Order
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("available orders: %w", err)
	}
	return out, nil
}

// ActiveOrders lists the orders currently assigned to the driver.
func (c *Client) ActiveOrders(ctx context.Context, driverID string) ([]order.Order, error) {
	path := fmt.Sprintf("/drivers/%s/orders", url.PathEscape(driverID))

	var out []order.Order
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("active orders: %w", err)
	}
	return out, nil
}

// AcceptOrder claims an available order for the driver. The returned order
// is the server's post-transition state.
func (c *Client) AcceptOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error) {
	return c.orderAction(ctx, driverID, orderID, "accept", notes)
}

// PickupOrder marks an assigned order as picked up.
func (c *Client) PickupOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error) {
	return c.orderAction(ctx, driverID, orderID, "pickup", notes)
}

// DeliverOrder marks a picked-up order as delivered.
func (c *Client) DeliverOrder(ctx context.Context, driverID, orderID, notes string) (*order.Order, error) {
	return c.orderAction(ctx, driverID, orderID, "deliver", notes)
}

// RegisterPushToken stores the device push token server-side.
func (c *Client) RegisterPushToken(ctx context.Context, driverID, token string) error {
	path := fmt.Sprintf("/drivers/%s/push-token", url.PathEscape(driverID))
	if err := c.do(ctx, http.MethodPost, path, contracts.PushTokenRequest{Token: token}, nil); err != nil {
		return fmt.Errorf("register push token: %w", err)
	}
	return nil
}

func (c *Client) orderAction(ctx context.Context, driverID, orderID, action, notes string) (*order.Order, error) {
	path := fmt.Sprintf("/drivers/%s/orders/%s/%s",
		url.PathEscape(driverID), url.PathEscape(orderID), action)

	var out order.Order
	err := c.do(logger.WithOrderID(ctx, orderID), http.MethodPost, path,
		contracts.OrderActionRequest{Notes: notes}, &out)
	if err != nil {
		return nil, fmt.Errorf("%s order: %w", action, err)
	}
	return &out, nil
}

// do performs one request. body==nil sends no body; out==nil discards the
// response body. Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if method == http.MethodPost {
		req.Header.Set(contracts.HeaderIdempotencyKey, uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er contracts.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		}
		c.log.Debug(ctx, "api_request_failed", method+" "+path, map[string]any{
			"status": resp.StatusCode,
			"error":  apiErr.Message,
		})
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
