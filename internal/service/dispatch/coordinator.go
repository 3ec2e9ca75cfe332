package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/metrics"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

// Coordinator turns queued ride requests into ledger records and hands them
// to the configured selection policy. It is the only writer that creates
// rides.
type Coordinator struct {
	ledger Ledger
	policy SelectionPolicy

	l   logger.Logger
	now func() time.Time
}

func NewCoordinator(ledger Ledger, policy SelectionPolicy, log logger.Logger) *Coordinator {
	return &Coordinator{
		ledger: ledger,
		policy: policy,
		l:      log,
		now:    time.Now,
	}
}

// HandleRideRequested is the ride_requests consumer handler. The ride id is
// derived from the correlation id so a redelivered message converges on the
// same record instead of spawning a twin.
func (c *Coordinator) HandleRideRequested(ctx context.Context, msg models.RideRequestedMessage) error {
	ctx = wrap.WithAction(ctx, types.ActionRideRequested)

	rideID, err := uuid.Parse(msg.CorrelationID)
	if err != nil {
		rideID = uuid.MustNew()
	}
	ctx = wrap.WithRideID(ctx, rideID.String())

	ride := &models.Ride{
		ID:          rideID,
		RiderID:     msg.RiderID,
		Pickup:      msg.Pickup,
		Dropoff:     msg.Dropoff,
		Status:      types.StatusRequested,
		RequestedAt: c.now(),
	}

	if err := c.ledger.Create(ctx, ride); err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not create ride: %w", err))
	}

	metrics.RidesTotal.WithLabelValues(string(types.RideService), string(types.StatusRequested)).Inc()
	c.l.Info(ctx, "ride created", "rider_id", ride.RiderID)

	if err := c.policy.Dispatch(ctx, ride); err != nil {
		return wrap.Error(ctx, fmt.Errorf("dispatch failed: %w", err))
	}

	return nil
}
