package handler

import (
	"context"
	"net/http"

	"github.com/adilzhan-b/ride-dispatch/internal/adapter/http/handler/dto"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
	"github.com/adilzhan-b/ride-dispatch/pkg/validator"
)

type Ride struct {
	service RideService
	l       logger.Logger
}

type RideService interface {
	Request(ctx context.Context, riderID, pickup, dropoff string) (string, error)
	Cancel(ctx context.Context, rideID uuid.UUID, riderID string) (*models.Ride, error)
	UpdateStatus(ctx context.Context, rideID uuid.UUID, from, to types.RideStatus, driverID *string) (*models.Ride, error)
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	HistoryByRider(ctx context.Context, riderID string) ([]models.Ride, error)
	HistoryByDriver(ctx context.Context, driverID string) ([]models.Ride, error)
}

func NewRide(service RideService, l logger.Logger) *Ride {
	return &Ride{
		service: service,
		l:       l,
	}
}

// RequestRide enqueues a new ride request. The response carries a correlation
// id, not a ride: the record is created asynchronously by the coordinator and
// shares the correlation id as its ride id.
func (h *Ride) RequestRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "request_ride")

	var req dto.RequestRideReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	correlationID, err := h.service.Request(ctx, req.RiderID, req.Pickup, req.Dropoff)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to enqueue ride request", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"correlation_id": correlationID,
		"status":         types.StatusRequested,
		"message":        "Ride request accepted, looking for a driver",
	}

	if err := writeJSON(w, http.StatusAccepted, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride request accepted", "rider_id", req.RiderID)
}

func (h *Ride) CancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_ride")

	var req dto.CancelRideReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	ride, err := h.service.Cancel(ctx, req.RideID, req.RiderID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride": dto.RideFromModel(ride),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride cancelled", "ride_id", req.RideID)
}

// UpdateStatus applies one lifecycle transition guarded on the ride's current
// status at read time. A concurrent change in between surfaces as a conflict.
func (h *Ride) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_ride_status")

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid ride uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	var req dto.UpdateStatusReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	target, err := types.ParseRideStatus(req.Status)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	current, err := h.service.Get(ctx, rideID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to load ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	ride, err := h.service.UpdateStatus(ctx, rideID, current.Status, target, req.DriverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update ride status", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride": dto.RideFromModel(ride),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride status updated", "ride_id", rideID, "status", target)
}

func (h *Ride) GetRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_ride")

	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid ride uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return
	}

	ride, err := h.service.Get(ctx, rideID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride": dto.RideFromModel(ride),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

func (h *Ride) RiderHistory(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "rider_history")

	riderID := r.PathValue("rider_id")
	if riderID == "" {
		errorResponse(w, http.StatusBadRequest, "rider_id must be provided")
		return
	}

	rides, err := h.service.HistoryByRider(ctx, riderID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list rider history", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"rider_id": riderID,
		"rides":    dto.RidesFromModels(rides),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

func (h *Ride) DriverHistory(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_history")

	driverID := r.PathValue("driver_id")
	if driverID == "" {
		errorResponse(w, http.StatusBadRequest, "driver_id must be provided")
		return
	}

	rides, err := h.service.HistoryByDriver(ctx, driverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list driver history", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"driver_id": driverID,
		"rides":     dto.RidesFromModels(rides),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}
