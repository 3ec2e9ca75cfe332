package dto

import (
	"strings"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
	"github.com/adilzhan-b/ride-dispatch/pkg/validator"
)

type PresenceReq struct {
	DriverID string `json:"driver_id"`
}

func (r *PresenceReq) Validate(v *validator.Validator) {
	v.Check(strings.TrimSpace(r.DriverID) != "", "driver_id", "must be provided")
}

type RideActionReq struct {
	DriverID string    `json:"driver_id"`
	RideID   uuid.UUID `json:"ride_id"`
}

func (r *RideActionReq) Validate(v *validator.Validator) {
	v.Check(strings.TrimSpace(r.DriverID) != "", "driver_id", "must be provided")
	v.Check(!r.RideID.IsNil(), "ride_id", "must be provided")
}

type AssignmentResponse struct {
	RideID   uuid.UUID `json:"ride_id"`
	RiderID  string    `json:"rider_id"`
	DriverID string    `json:"driver_id"`
	Pickup   string    `json:"pickup"`
	Dropoff  string    `json:"dropoff"`
	Status   string    `json:"status"`
}

func AssignmentFromModel(rec *models.AssignmentRecord) AssignmentResponse {
	return AssignmentResponse{
		RideID:   rec.RideID,
		RiderID:  rec.RiderID,
		DriverID: rec.DriverID,
		Pickup:   rec.Pickup,
		Dropoff:  rec.Dropoff,
		Status:   rec.Status.String(),
	}
}
