package handler

import (
	"context"
	"net/http"

	"github.com/adilzhan-b/ride-dispatch/internal/adapter/http/handler/dto"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
	"github.com/adilzhan-b/ride-dispatch/pkg/validator"
)

type Driver struct {
	gateway  DriverGateway
	presence DriverPresence
	l        logger.Logger
}

type DriverGateway interface {
	Accept(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error)
	Start(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error)
	Complete(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error)
	CancelByDriver(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error)
	Decline(ctx context.Context, driverID string, rideID uuid.UUID) error
}

type DriverPresence interface {
	Online(ctx context.Context, driverID string) error
	Offline(ctx context.Context, driverID string) error
	Assigned(ctx context.Context, driverID string) (*models.AssignmentRecord, error)
	Pending(ctx context.Context) ([]models.Ride, error)
}

func NewDriver(gateway DriverGateway, presence DriverPresence, l logger.Logger) *Driver {
	return &Driver{
		gateway:  gateway,
		presence: presence,
		l:        l,
	}
}

func (h *Driver) GoOnline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_online")

	req, ok := h.readPresenceReq(ctx, w, r)
	if !ok {
		return
	}

	if err := h.presence.Online(ctx, req.DriverID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver online", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"driver_id": req.DriverID,
		"status":    "online",
		"message":   "You are now online and ready to accept rides",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to online", "driver_id", req.DriverID)
}

func (h *Driver) GoOffline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_offline")

	req, ok := h.readPresenceReq(ctx, w, r)
	if !ok {
		return
	}

	if err := h.presence.Offline(ctx, req.DriverID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver offline", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"driver_id": req.DriverID,
		"status":    "offline",
		"message":   "You are now offline",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to offline", "driver_id", req.DriverID)
}

// GetAssigned answers the driver's "what am I offered" poll from the
// visibility cache. No offer is a 404.
func (h *Driver) GetAssigned(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_assigned_ride")

	driverID := r.PathValue("driver_id")
	if driverID == "" {
		errorResponse(w, http.StatusBadRequest, "driver_id must be provided")
		return
	}

	rec, err := h.presence.Assigned(ctx, driverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read assigned ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}
	if rec == nil {
		errorResponse(w, http.StatusNotFound, "no ride assigned")
		return
	}

	response := envelope{
		"assignment": dto.AssignmentFromModel(rec),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// GetPending lists unmatched rides open for claiming.
func (h *Driver) GetPending(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_pending_rides")

	rides, err := h.presence.Pending(ctx)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list pending rides", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"rides": dto.RidesFromModels(rides),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

func (h *Driver) AcceptRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "accept_ride")

	h.rideAction(ctx, w, r, h.gateway.Accept, "ride accepted")
}

func (h *Driver) StartRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "start_ride")

	h.rideAction(ctx, w, r, h.gateway.Start, "ride started")
}

func (h *Driver) CompleteRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "complete_ride")

	h.rideAction(ctx, w, r, h.gateway.Complete, "ride completed")
}

func (h *Driver) CancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_cancel_ride")

	h.rideAction(ctx, w, r, h.gateway.CancelByDriver, "ride cancelled")
}

func (h *Driver) DeclineRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "decline_ride")

	req, ok := h.readRideActionReq(ctx, w, r)
	if !ok {
		return
	}

	if err := h.gateway.Decline(ctx, req.DriverID, req.RideID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to decline ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride_id": req.RideID,
		"message": "Offer declined",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "offer declined", "driver_id", req.DriverID, "ride_id", req.RideID)
}

// rideAction runs one driver lifecycle call and writes the resulting ride.
func (h *Driver) rideAction(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error),
	message string,
) {
	req, ok := h.readRideActionReq(ctx, w, r)
	if !ok {
		return
	}

	ride, err := action(ctx, req.DriverID, req.RideID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "driver ride action failed", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride":    dto.RideFromModel(ride),
		"message": message,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, message, "driver_id", req.DriverID, "ride_id", req.RideID)
}

func (h *Driver) readPresenceReq(ctx context.Context, w http.ResponseWriter, r *http.Request) (dto.PresenceReq, bool) {
	var req dto.PresenceReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return req, false
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return req, false
	}

	return req, true
}

func (h *Driver) readRideActionReq(ctx context.Context, w http.ResponseWriter, r *http.Request) (dto.RideActionReq, bool) {
	var req dto.RideActionReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return req, false
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return req, false
	}

	return req, true
}
