package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/driver"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(srv *httptest.Server) *Client {
	return New(srv.URL, logger.New("restapi-test"), staticToken("tok-123"))
}

func TestSetAvailability(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method

		var req contracts.AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if !req.IsAvailable {
			t.Error("expected is_available=true")
		}
		json.NewEncoder(w).Encode(contracts.AvailabilityResponse{Status: "AVAILABLE"})
	}))
	defer srv.Close()

	av, err := newTestClient(srv).SetAvailability(context.Background(), "driver-1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if av != driver.Available {
		t.Errorf("expected AVAILABLE, got %s", av)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/drivers/driver-1/availability" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("missing bearer token, got %q", gotAuth)
	}
}

func TestPatchLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/drivers/driver-1/location" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req contracts.LocationPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Latitude != 52.52 || req.Longitude != 13.405 {
			t.Errorf("unexpected coordinates %v/%v", req.Latitude, req.Longitude)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv).PatchLocation(context.Background(), "driver-1",
		geo.Point{Latitude: 52.52, Longitude: 13.405}, "AVAILABLE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAvailableOrdersQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers/driver-1/available-orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("radius_km"); got != "7.5" {
			t.Errorf("expected radius_km=7.5, got %q", got)
		}
		json.NewEncoder(w).Encode([]order.Order{
			{ID: "ord-1", Status: order.StatusAvailable},
			{ID: "ord-2", Status: order.StatusAvailable},
		})
	}))
	defer srv.Close()

	orders, err := newTestClient(srv).AvailableOrders(context.Background(), "driver-1", 7.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "ord-1" {
		t.Errorf("unexpected orders %+v", orders)
	}
}

func TestAcceptOrderSendsIdempotencyKey(t *testing.T) {
	keys := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers/driver-1/orders/ord-9/accept" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		key := r.Header.Get(contracts.HeaderIdempotencyKey)
		if key == "" {
			t.Error("missing idempotency key on POST")
		}
		keys[key] = true
		json.NewEncoder(w).Encode(order.Order{ID: "ord-9", Status: order.StatusAssigned})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	for i := 0; i < 2; i++ {
		o, err := c.AcceptOrder(context.Background(), "driver-1", "ord-9", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != order.StatusAssigned {
			t.Errorf("expected ASSIGNED, got %s", o.Status)
		}
	}
	if len(keys) != 2 {
		t.Errorf("expected a fresh key per call, got %d distinct keys", len(keys))
	}
}

func TestServerErrorSurfacesVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(contracts.ErrorResponse{Error: "Order already assigned to another driver"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).AcceptOrder(context.Background(), "driver-1", "ord-9", "")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Order already assigned to another driver" {
		t.Errorf("server message mangled: %q", apiErr.Message)
	}
}

func TestRegisterPushToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/drivers/driver-1/push-token" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req contracts.PushTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Token != "push.driver.driver-1" {
			t.Errorf("unexpected token %q", req.Token)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv).RegisterPushToken(context.Background(), "driver-1", "push.driver.driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
