package ride

import (
	"context"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

type RideRepo interface {
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	ListByRider(ctx context.Context, riderID string) ([]models.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]models.Ride, error)
	CancelByRider(ctx context.Context, rideID uuid.UUID, at time.Time) (bool, error)
	UpdateStatusGuarded(ctx context.Context, rideID uuid.UUID, from, to types.RideStatus, driverID *string, at time.Time) (bool, error)
}

type Broker interface {
	PublishRideRequested(ctx context.Context, msg models.RideRequestedMessage) error
	PublishRideCancelled(ctx context.Context, msg models.RideCancelledMessage) error
}
