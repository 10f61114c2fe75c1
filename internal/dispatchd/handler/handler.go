package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/hub"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/service"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/store"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/jwt"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

// Handler adapts HTTP requests to the dispatch service.
type Handler struct {
	svc    *service.Service
	logger *logger.Logger
	auth   *jwt.Manager
	hub    *hub.Hub
}

// New wires an HTTP handler around the dispatch service.
func New(svc *service.Service, log *logger.Logger, auth *jwt.Manager, h *hub.Hub) *Handler {
	return &Handler{svc: svc, logger: log, auth: auth, hub: h}
}

// RegisterRoutes mounts the driver API, the dispatcher surface, and the
// realtime endpoint on mux.
func (handler *Handler) RegisterRoutes(mux *http.ServeMux) {
	driverOnly := jwt.AuthMiddlewareFunc(handler.auth, jwt.RoleDriver)
	dispatcherOnly := jwt.AuthMiddlewareFunc(handler.auth, jwt.RoleDispatcher)

	mux.HandleFunc("PATCH /drivers/{driver_id}/availability", driverOnly(handler.handleAvailability))
	mux.HandleFunc("PATCH /drivers/{driver_id}/location", driverOnly(handler.handleLocation))
	mux.HandleFunc("GET /drivers/{driver_id}/available-orders", driverOnly(handler.handleAvailableOrders))
	mux.HandleFunc("GET /drivers/{driver_id}/orders", driverOnly(handler.handleActiveOrders))
	mux.HandleFunc("POST /drivers/{driver_id}/orders/{order_id}/accept", driverOnly(handler.handleAccept))
	mux.HandleFunc("POST /drivers/{driver_id}/orders/{order_id}/pickup", driverOnly(handler.handlePickup))
	mux.HandleFunc("POST /drivers/{driver_id}/orders/{order_id}/deliver", driverOnly(handler.handleDeliver))
	mux.HandleFunc("POST /drivers/{driver_id}/push-token", driverOnly(handler.handlePushToken))

	mux.HandleFunc("POST /orders", dispatcherOnly(handler.handleCreateOrder))

	// websocket auth happens inside the hub (token query param support)
	mux.HandleFunc("GET /events", handler.hub.HandleEvents)

	mux.HandleFunc("GET /health", handler.handleHealth)
	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

func (handler *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// ----- dev token minting -----

type tokenRequest struct {
	DriverID string `json:"driver_id"`
	Role     string `json:"role"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	DriverID string `json:"driver_id"`
	Role     string `json:"role"`
}

// handleCreateToken mints JWTs for local testing.
func (handler *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req tokenRequest
	if err := handler.decodeBody(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.DriverID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "driver_id is required", nil)
		return
	}
	role, ok := jwt.ParseRole(req.Role)
	if !ok {
		role = jwt.RoleDriver
	}

	token, claims, err := handler.auth.IssueToken(req.DriverID, role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated",
		map[string]string{"driver_id": req.DriverID, "role": string(claims.Role)})
	handler.jsonResponse(ctx, w, http.StatusCreated, tokenResponse{
		Token:    token,
		DriverID: req.DriverID,
		Role:     string(claims.Role),
	})
}

// ----- shared helpers -----

// pathDriverID extracts driver_id and asserts it matches the token subject.
func (handler *Handler) pathDriverID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	driverID := strings.TrimSpace(r.PathValue("driver_id"))
	if driverID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing driver_id in path", nil)
		return "", false
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return "", false
	}
	if sub := strings.TrimSpace(claims.Subject); sub == "" || sub != driverID {
		handler.httpError(ctx, w, http.StatusForbidden, "driver_id does not match token subject",
			errors.New("driver/token mismatch"))
		return "", false
	}
	return driverID, true
}

// decodeBody decodes a strict, size-limited JSON request body.
func (handler *Handler) decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// serviceError maps domain failures to status codes. The message becomes the
// error body the client surfaces to the driver.
func (handler *Handler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "Order not found", err)
	case errors.Is(err, order.ErrAlreadyAssigned):
		handler.httpError(ctx, w, http.StatusConflict, "Order already assigned to another driver", err)
	case errors.Is(err, order.ErrInvalidStatusTransition):
		handler.httpError(ctx, w, http.StatusConflict, "Order is not in a state that allows this action", err)
	case errors.Is(err, order.ErrNotAssignedToDriver):
		handler.httpError(ctx, w, http.StatusForbidden, "Order is not assigned to you", err)
	case errors.Is(err, order.ErrOrderNumberRequired),
		errors.Is(err, order.ErrCustomerRequired),
		errors.Is(err, order.ErrGarmentCountInvalid):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// jsonResponse encodes data to the response, buffering first so a marshal
// failure can still change the status code. 204 carries no body at all.
func (handler *Handler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error body with a message.
func (handler *Handler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	switch {
	case status >= 500:
		action = "http_internal_error"
	case status == http.StatusBadRequest:
		action = "validation_failed"
	case status == http.StatusConflict:
		action = "transition_rejected"
	}
	if status >= 500 {
		handler.logger.Error(ctx, action, msg, err, nil)
	} else {
		handler.logger.Warn(ctx, action, msg, map[string]string{"error": errText(err)})
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *Handler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
