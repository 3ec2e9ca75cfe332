package dto

import (
	"strings"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
	"github.com/adilzhan-b/ride-dispatch/pkg/validator"
)

const maxLocationLen = 255

type RequestRideReq struct {
	RiderID string `json:"rider_id"`
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`
}

func (r *RequestRideReq) Validate(v *validator.Validator) {
	v.Check(strings.TrimSpace(r.RiderID) != "", "rider_id", "must be provided")
	v.Check(strings.TrimSpace(r.Pickup) != "", "pickup", "must be provided")
	v.Check(len(r.Pickup) <= maxLocationLen, "pickup", "must not be longer than 255 characters")
	v.Check(strings.TrimSpace(r.Dropoff) != "", "dropoff", "must be provided")
	v.Check(len(r.Dropoff) <= maxLocationLen, "dropoff", "must not be longer than 255 characters")
}

type CancelRideReq struct {
	RideID  uuid.UUID `json:"ride_id"`
	RiderID string    `json:"rider_id"`
}

func (r *CancelRideReq) Validate(v *validator.Validator) {
	v.Check(!r.RideID.IsNil(), "ride_id", "must be provided")
	v.Check(strings.TrimSpace(r.RiderID) != "", "rider_id", "must be provided")
}

type UpdateStatusReq struct {
	Status   string  `json:"status"`
	DriverID *string `json:"driver_id,omitempty"`
}

func (r *UpdateStatusReq) Validate(v *validator.Validator) {
	v.Check(strings.TrimSpace(r.Status) != "", "status", "must be provided")
	if r.Status != "" {
		_, err := types.ParseRideStatus(r.Status)
		v.Check(err == nil, "status", "is not a known ride status")
	}
}

type RideResponse struct {
	RideID      uuid.UUID  `json:"ride_id"`
	RiderID     string     `json:"rider_id"`
	DriverID    *string    `json:"driver_id,omitempty"`
	Pickup      string     `json:"pickup"`
	Dropoff     string     `json:"dropoff"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func RideFromModel(ride *models.Ride) RideResponse {
	return RideResponse{
		RideID:      ride.ID,
		RiderID:     ride.RiderID,
		DriverID:    ride.DriverID,
		Pickup:      ride.Pickup,
		Dropoff:     ride.Dropoff,
		Status:      ride.Status.String(),
		RequestedAt: ride.RequestedAt,
		AssignedAt:  ride.AssignedAt,
		StartedAt:   ride.StartedAt,
		CompletedAt: ride.CompletedAt,
		CancelledAt: ride.CancelledAt,
	}
}

func RidesFromModels(rides []models.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for i := range rides {
		out = append(out, RideFromModel(&rides[i]))
	}
	return out
}
