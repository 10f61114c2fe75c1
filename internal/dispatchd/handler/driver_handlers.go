package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
)

const serviceTimeout = 5 * time.Second

// ----- PATCH /drivers/{driver_id}/availability -----

func (handler *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	var req contracts.AvailabilityRequest
	if err := handler.decodeBody(w, r, &req); err != nil {
		handler.badBody(ctx, w, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	av, err := handler.svc.SetAvailability(ctx, driverID, req.IsAvailable)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, contracts.AvailabilityResponse{Status: av.String()})
}

// ----- PATCH /drivers/{driver_id}/location -----

func (handler *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	var req contracts.LocationPatchRequest
	if err := handler.decodeBody(w, r, &req); err != nil {
		handler.badBody(ctx, w, err)
		return
	}

	pt := geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := pt.Validate(); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	if err := handler.svc.SaveLocation(ctx, driverID, pt); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusNoContent, nil)
}

// ----- GET /drivers/{driver_id}/available-orders -----

func (handler *Handler) handleAvailableOrders(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	var radiusKm float64
	if raw := strings.TrimSpace(r.URL.Query().Get("radius_km")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			handler.httpError(ctx, w, http.StatusBadRequest, "radius_km must be a non-negative number", err)
			return
		}
		radiusKm = v
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	orders, err := handler.svc.AvailableOrders(ctx, driverID, radiusKm)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, orders)
}

// ----- GET /drivers/{driver_id}/orders -----

func (handler *Handler) handleActiveOrders(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	orders, err := handler.svc.ActiveOrders(ctx, driverID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, orders)
}

// ----- POST /drivers/{driver_id}/push-token -----

func (handler *Handler) handlePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	var req contracts.PushTokenRequest
	if err := handler.decodeBody(w, r, &req); err != nil {
		handler.badBody(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "token is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	if err := handler.svc.RegisterPushToken(ctx, driverID, req.Token); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusNoContent, nil)
}

// badBody maps decode failures, distinguishing oversized bodies.
func (handler *Handler) badBody(ctx context.Context, w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
		return
	}
	handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
}
