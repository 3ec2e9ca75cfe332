package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
)

// SelectionPolicy decides what happens to a freshly created ride. Dispatch is
// called once per ride, after the ledger record exists.
type SelectionPolicy interface {
	Dispatch(ctx context.Context, ride *models.Ride) error
}

// DirectPickPolicy draws one online driver at random and assigns the ride to
// it immediately. The driver never gets a say; decline happens later through
// the driver-side endpoints.
type DirectPickPolicy struct {
	ledger      Ledger
	presence    Presence
	assignments Assignments
	broker      Broker

	retries int
	backoff time.Duration

	l   logger.Logger
	now func() time.Time
}

func NewDirectPickPolicy(ledger Ledger, presence Presence, assignments Assignments, broker Broker, retries int, backoff time.Duration, log logger.Logger) *DirectPickPolicy {
	if retries <= 0 {
		retries = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &DirectPickPolicy{
		ledger:      ledger,
		presence:    presence,
		assignments: assignments,
		broker:      broker,
		retries:     retries,
		backoff:     backoff,
		l:           log,
		now:         time.Now,
	}
}

func (p *DirectPickPolicy) Dispatch(ctx context.Context, ride *models.Ride) error {
	driverID, err := p.presence.Random(ctx)
	if err != nil {
		if errors.Is(err, types.ErrNoDriversAvailable) {
			// nobody online: the ride stays requested and waits for a
			// later accept through the pending list
			p.l.Warn(ctx, "no drivers online, ride left unmatched")
			return nil
		}
		return wrap.Error(ctx, fmt.Errorf("could not pick a driver: %w", err))
	}
	ctx = wrap.WithDriverID(ctx, driverID)

	at := p.now()
	ok, err := p.ledger.AssignDriver(ctx, ride.ID, driverID, at)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not assign driver: %w", err))
	}
	if !ok {
		// the ride is no longer assignable: cancelled meanwhile, or this is
		// a redelivery of a request that already got matched
		p.l.Warn(wrap.WithAction(ctx, types.ActionRideAssigned), "ride not assignable, skipping")
		return nil
	}

	ride.Status = types.StatusAssigned
	ride.DriverID = &driverID
	ride.AssignedAt = &at

	// The assignment is committed. Everything below is visibility and
	// notification: retried in place, never rolled back.
	rec := models.AssignmentFromRide(ride)
	if err := p.withRetry(func() error { return p.assignments.Set(ctx, rec) }); err != nil {
		p.l.Error(ctx, "failed to cache assignment, driver must discover via ledger", err)
	}

	msg := models.DriverAssignedMessage{
		RideID:   ride.ID,
		RiderID:  ride.RiderID,
		DriverID: driverID,
		Pickup:   ride.Pickup,
		Dropoff:  ride.Dropoff,
	}
	if err := p.broker.PublishDriverAssigned(ctx, msg); err != nil {
		p.l.Error(ctx, "failed to publish driver assignment", err)
	}

	p.l.Info(wrap.WithAction(ctx, types.ActionRideAssigned), "ride assigned to driver")
	return nil
}

func (p *DirectPickPolicy) withRetry(fn func() error) error {
	var err error
	for range p.retries {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(p.backoff)
	}
	return err
}

// BroadcastPolicy leaves the ride in requested. Every online driver sees it
// through the pending list and the first successful accept claims it.
type BroadcastPolicy struct {
	l logger.Logger
}

func NewBroadcastPolicy(log logger.Logger) *BroadcastPolicy {
	return &BroadcastPolicy{l: log}
}

func (p *BroadcastPolicy) Dispatch(ctx context.Context, ride *models.Ride) error {
	p.l.Info(ctx, "ride open for claims", "pickup", ride.Pickup)
	return nil
}
