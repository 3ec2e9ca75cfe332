package driver

import (
	"context"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

type Ledger interface {
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	ListPending(ctx context.Context, limit int) ([]models.Ride, error)
	ClaimRequested(ctx context.Context, rideID uuid.UUID, driverID string, at time.Time) (bool, error)
	TransitionOwned(ctx context.Context, rideID uuid.UUID, driverID string, from []types.RideStatus, to types.RideStatus, at time.Time) (bool, error)
}

type Presence interface {
	MarkOnline(ctx context.Context, driverID string) error
	MarkOffline(ctx context.Context, driverID string) error
	Count(ctx context.Context) (int64, error)
}

type Assignments interface {
	Set(ctx context.Context, rec models.AssignmentRecord) error
	Get(ctx context.Context, driverID string) (*models.AssignmentRecord, error)
	Delete(ctx context.Context, driverID string) error
}

type Broker interface {
	PublishRideCancelled(ctx context.Context, msg models.RideCancelledMessage) error
}

// Notifier pushes realtime events to a connected driver. Delivery is
// best-effort; a driver without an open socket simply polls instead.
type Notifier interface {
	SendTo(driverID string, msg any) error
}
