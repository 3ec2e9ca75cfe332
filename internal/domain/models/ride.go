package models

import (
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

// Ride is the authoritative ledger record of one transportation request.
// It is created by the dispatch coordinator, never deleted; terminal rides
// are retained for history.
type Ride struct {
	ID       uuid.UUID        `json:"ride_id"`
	RiderID  string           `json:"rider_id"`
	DriverID *string          `json:"driver_id,omitempty"`
	Pickup   string           `json:"pickup"`
	Dropoff  string           `json:"dropoff"`
	Status   types.RideStatus `json:"status"`

	// Each timestamp is set at most once, monotonically later than the previous.
	RequestedAt time.Time  `json:"requested_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Driver returns the driver id or "" when the ride is unmatched.
func (r *Ride) Driver() string {
	if r.DriverID == nil {
		return ""
	}
	return *r.DriverID
}

// OwnedBy reports whether the ride currently belongs to the given driver.
func (r *Ride) OwnedBy(driverID string) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

// AssignmentRecord is the cached, driver-facing snapshot of "what ride am I
// currently offered/holding". It lives in redis under assignment:{driverId}.
// The ledger stays authoritative; this record may be stale or absent and is
// only used to answer driver polling.
type AssignmentRecord struct {
	RideID   uuid.UUID        `json:"ride_id"`
	RiderID  string           `json:"rider_id"`
	DriverID string           `json:"driver_id"`
	Pickup   string           `json:"pickup"`
	Dropoff  string           `json:"dropoff"`
	Status   types.RideStatus `json:"status"`
}

// AssignmentFromRide builds the visibility snapshot for the ride's driver.
func AssignmentFromRide(ride *Ride) AssignmentRecord {
	return AssignmentRecord{
		RideID:   ride.ID,
		RiderID:  ride.RiderID,
		DriverID: ride.Driver(),
		Pickup:   ride.Pickup,
		Dropoff:  ride.Dropoff,
		Status:   ride.Status,
	}
}
