package driver

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

// Gateway is the driver-facing application layer. Every state change it makes
// goes through a guarded ledger write; the assignment cache is updated after
// the fact and is allowed to lag.
type Gateway struct {
	ledger      Ledger
	assignments Assignments
	broker      Broker

	l   logger.Logger
	now func() time.Time
}

func NewGateway(ledger Ledger, assignments Assignments, broker Broker, log logger.Logger) *Gateway {
	return &Gateway{
		ledger:      ledger,
		assignments: assignments,
		broker:      broker,
		l:           log,
		now:         time.Now,
	}
}

// Accept claims a ride for the driver. Works for both entry paths: a ride
// assigned to this driver moves assigned->accepted, an unmatched broadcast
// ride moves requested->accepted. Exactly one of any number of concurrent
// accepts wins; the rest get ErrRideAlreadyTaken. Re-accepting a ride the
// driver already holds is a no-op success.
func (g *Gateway) Accept(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "driver_accept")
	ctx = wrap.WithDriverID(ctx, driverID)
	ctx = wrap.WithRideID(ctx, rideID.String())

	ride, err := g.ledger.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	var won bool
	switch {
	case ride.Status == types.StatusAccepted && ride.OwnedBy(driverID):
		// duplicate accept, nothing to do
		return ride, nil

	case ride.Status == types.StatusAssigned && ride.OwnedBy(driverID):
		won, err = g.ledger.TransitionOwned(ctx, rideID, driverID,
			[]types.RideStatus{types.StatusAssigned}, types.StatusAccepted, g.now())

	case ride.Status == types.StatusRequested:
		won, err = g.ledger.ClaimRequested(ctx, rideID, driverID, g.now())

	default:
		return nil, g.acceptLoss(ctx, driverID, ride)
	}
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not accept ride: %w", err))
	}

	if !won {
		// the guard failed between our read and our write; re-read to name
		// the reason
		current, err := g.ledger.Get(ctx, rideID)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}
		if current.Status == types.StatusAccepted && current.OwnedBy(driverID) {
			// a duplicate of our own request got there first
			return current, nil
		}
		return nil, g.acceptLoss(ctx, driverID, current)
	}

	accepted, err := g.ledger.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	metrics.RidesTotal.WithLabelValues(string(types.DriverService), string(types.StatusAccepted)).Inc()

	if err := g.assignments.Set(ctx, models.AssignmentFromRide(accepted)); err != nil {
		g.l.Error(ctx, "failed to refresh assignment cache after accept", err)
	}

	g.l.Info(ctx, "ride accepted")
	return accepted, nil
}

// acceptLoss classifies a failed accept from the ride's current state.
func (g *Gateway) acceptLoss(ctx context.Context, driverID string, ride *models.Ride) error {
	switch {
	case ride.Status.HoldsDriver() && !ride.OwnedBy(driverID):
		metrics.AcceptRaceLostTotal.WithLabelValues(string(types.DriverService)).Inc()
		g.l.Warn(ctx, "accept lost to another driver", "holder", ride.Driver())
		return wrap.Error(ctx, types.ErrRideAlreadyTaken)
	default:
		return wrap.Error(ctx, types.ErrInvalidTransition)
	}
}

// Start marks the pickup done and the ride in motion.
func (g *Gateway) Start(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "driver_start")

	ride, err := g.transition(ctx, driverID, rideID,
		[]types.RideStatus{types.StatusAccepted, types.StatusAssigned}, types.StatusOngoing)
	if err != nil {
		return nil, err
	}

	if err := g.assignments.Set(ctx, models.AssignmentFromRide(ride)); err != nil {
		g.l.Error(ctx, "failed to refresh assignment cache after start", err)
	}

	g.l.Info(wrap.WithRideID(ctx, rideID.String()), "ride started")
	return ride, nil
}

// Complete finishes the ride and releases the driver for new work.
func (g *Gateway) Complete(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "driver_complete")

	ride, err := g.transition(ctx, driverID, rideID,
		[]types.RideStatus{types.StatusOngoing}, types.StatusCompleted)
	if err != nil {
		return nil, err
	}

	if err := g.assignments.Delete(ctx, driverID); err != nil {
		g.l.Error(ctx, "failed to clear assignment cache after completion", err)
	}

	g.l.Info(wrap.WithRideID(ctx, rideID.String()), "ride completed")
	return ride, nil
}

// CancelByDriver abandons a matched ride before it starts. The ledger releases
// the driver claim and the rider side is told through the cancellation queue.
func (g *Gateway) CancelByDriver(ctx context.Context, driverID string, rideID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, types.ActionRideCancelled)

	ride, err := g.transition(ctx, driverID, rideID,
		[]types.RideStatus{types.StatusAssigned, types.StatusAccepted}, types.StatusDriverCancelled)
	if err != nil {
		return nil, err
	}

	if err := g.assignments.Delete(ctx, driverID); err != nil {
		g.l.Error(ctx, "failed to clear assignment cache after cancel", err)
	}

	msg := models.RideCancelledMessage{
		RideID:   ride.ID,
		DriverID: driverID,
		RiderID:  ride.RiderID,
	}
	if err := g.broker.PublishRideCancelled(ctx, msg); err != nil {
		g.l.Error(ctx, "failed to publish driver cancellation", err)
	}

	metrics.RidesTotal.WithLabelValues(string(types.DriverService), string(types.StatusDriverCancelled)).Inc()
	g.l.Info(wrap.WithRideID(ctx, rideID.String()), "ride cancelled by driver")
	return ride, nil
}

// Decline dismisses the driver's cached offer without touching the ledger.
// Under direct pick the ride stays assigned until the driver cancels or the
// rider does; under broadcast there is no claim to release.
func (g *Gateway) Decline(ctx context.Context, driverID string, rideID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "driver_decline")
	ctx = wrap.WithDriverID(ctx, driverID)

	rec, err := g.assignments.Get(ctx, driverID)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	if rec == nil || rec.RideID != rideID {
		return nil
	}

	if err := g.assignments.Delete(ctx, driverID); err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not clear declined offer: %w", err))
	}

	g.l.Info(wrap.WithRideID(ctx, rideID.String()), "offer declined")
	return nil
}

// transition runs one owned compare-and-set and names the failure if it loses.
func (g *Gateway) transition(ctx context.Context, driverID string, rideID uuid.UUID, from []types.RideStatus, to types.RideStatus) (*models.Ride, error) {
	ctx = wrap.WithDriverID(ctx, driverID)
	ctx = wrap.WithRideID(ctx, rideID.String())

	ok, err := g.ledger.TransitionOwned(ctx, rideID, driverID, from, to, g.now())
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not transition ride: %w", err))
	}
	if !ok {
		ride, err := g.ledger.Get(ctx, rideID)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}
		if ride.Status.HoldsDriver() && !ride.OwnedBy(driverID) {
			return nil, wrap.Error(ctx, types.ErrNotRideOwner)
		}
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}

	ride, err := g.ledger.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	metrics.RidesTotal.WithLabelValues(string(types.DriverService), to.String()).Inc()
	return ride, nil
}
