package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/service"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/order"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
)

type transitionFn func(ctx context.Context, driverID, orderID, notes, idemKey string) (*order.Order, error)

// ----- POST /drivers/{driver_id}/orders/{order_id}/accept -----

func (handler *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	handler.handleTransition(w, r, handler.svc.Accept)
}

// ----- POST /drivers/{driver_id}/orders/{order_id}/pickup -----

func (handler *Handler) handlePickup(w http.ResponseWriter, r *http.Request) {
	handler.handleTransition(w, r, handler.svc.Pickup)
}

// ----- POST /drivers/{driver_id}/orders/{order_id}/deliver -----

func (handler *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	handler.handleTransition(w, r, handler.svc.Deliver)
}

func (handler *Handler) handleTransition(w http.ResponseWriter, r *http.Request, fn transitionFn) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.pathDriverID(ctx, w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(r.PathValue("order_id"))
	if orderID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing order_id in path", nil)
		return
	}

	// notes are accepted but optional; an empty body is fine too
	var req contracts.OrderActionRequest
	if r.ContentLength > 0 {
		if err := handler.decodeBody(w, r, &req); err != nil {
			handler.badBody(ctx, w, err)
			return
		}
	}

	idemKey := r.Header.Get(contracts.HeaderIdempotencyKey)

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	o, err := fn(ctx, driverID, orderID, req.Notes, idemKey)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, o)
}

// ----- POST /orders (dispatcher) -----

func (handler *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req service.CreateOrderInput
	if err := handler.decodeBody(w, r, &req); err != nil {
		handler.badBody(ctx, w, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	o, err := handler.svc.CreateOrder(ctx, req)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, o)
}
