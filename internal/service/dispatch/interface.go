package dispatch

import (
	"context"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

type Ledger interface {
	Create(ctx context.Context, ride *models.Ride) error
	AssignDriver(ctx context.Context, rideID uuid.UUID, driverID string, at time.Time) (bool, error)
}

type Presence interface {
	Random(ctx context.Context) (string, error)
}

type Assignments interface {
	Set(ctx context.Context, rec models.AssignmentRecord) error
}

type Broker interface {
	PublishDriverAssigned(ctx context.Context, msg models.DriverAssignedMessage) error
}
