package models

import "github.com/adilzhan-b/ride-dispatch/pkg/uuid"

/* ======================= rabbitmq ======================= */

// RideRequestedMessage is published by the ride intake endpoint. The ride
// record does not exist yet; the coordinator assigns the identifier when it
// consumes this message.
type RideRequestedMessage struct {
	RiderID       string `json:"rider_id"`
	Pickup        string `json:"pickup"`
	Dropoff       string `json:"dropoff"`
	CorrelationID string `json:"correlation_id"`
}

// DriverAssignedMessage notifies the driver side that a ride was matched
// under the direct-pick policy.
type DriverAssignedMessage struct {
	RideID        uuid.UUID `json:"ride_id"`
	RiderID       string    `json:"rider_id"`
	DriverID      string    `json:"driver_id"`
	Pickup        string    `json:"pickup"`
	Dropoff       string    `json:"dropoff"`
	CorrelationID string    `json:"correlation_id"`
}

// RideCancelledMessage is published by whichever party cancels the ride.
// DriverID is empty when the ride was never matched.
type RideCancelledMessage struct {
	RideID        uuid.UUID `json:"ride_id"`
	DriverID      string    `json:"driver_id"`
	RiderID       string    `json:"rider_id"`
	CorrelationID string    `json:"correlation_id"`
}
