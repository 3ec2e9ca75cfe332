package ride

import (
	"context"
	"fmt"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/metrics"
	"github.com/adilzhan-b/ride-dispatch/pkg/trm"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

// RideService is the rider-facing application layer: intake, rider
// cancellation, status reads and history. Intake does not write the ledger;
// the ride record is born later, when the dispatch coordinator consumes the
// queued request.
type RideService struct {
	repo   RideRepo
	broker Broker
	trm    trm.TxManager
	logger logger.Logger
	now    func() time.Time
}

func NewRideService(repo RideRepo, broker Broker, trm trm.TxManager, log logger.Logger) *RideService {
	return &RideService{
		repo:   repo,
		broker: broker,
		trm:    trm,
		logger: log,
		now:    time.Now,
	}
}

// Request accepts a ride request and enqueues it for matching. The returned
// correlation id is the rider's only handle until the coordinator creates
// the ledger record.
func (s *RideService) Request(ctx context.Context, riderID, pickup, dropoff string) (string, error) {
	ctx = wrap.WithAction(ctx, types.ActionRideRequested)

	correlationID := uuid.MustNew().String()
	ctx = wrap.WithRequestID(ctx, correlationID)

	msg := models.RideRequestedMessage{
		RiderID:       riderID,
		Pickup:        pickup,
		Dropoff:       dropoff,
		CorrelationID: correlationID,
	}

	if err := s.broker.PublishRideRequested(ctx, msg); err != nil {
		return "", wrap.Error(ctx, fmt.Errorf("could not enqueue ride request: %w", err))
	}

	s.logger.Info(ctx, "ride request enqueued", "rider_id", riderID)
	return correlationID, nil
}

// Cancel is the rider's escape hatch. Allowed only before pickup, i.e. while
// the ride is requested or assigned; the ledger write and the queue publish
// are deliberately not atomic, the ledger commits first and the publish is
// best-effort after it.
func (s *RideService) Cancel(ctx context.Context, rideID uuid.UUID, riderID string) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, types.ActionRideCancelled)
	ctx = wrap.WithRideID(ctx, rideID.String())

	var cancelled *models.Ride

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.repo.Get(ctx, rideID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if ride.RiderID != riderID {
			return wrap.Error(ctx, types.ErrRideNotFound)
		}

		if ride.Status.IsTerminal() {
			return wrap.Error(ctx, types.ErrInvalidTransition)
		}

		ok, err := s.repo.CancelByRider(ctx, rideID, s.now())
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not cancel ride: %w", err))
		}
		if !ok {
			// the ride moved past assigned between the read and the write
			return wrap.Error(ctx, types.ErrInvalidTransition)
		}

		cancelled = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RidesTotal.WithLabelValues(string(types.RideService), string(types.StatusRiderCancelled)).Inc()

	// Propagate to the driver side so a pending offer gets revoked. The
	// cancellation already holds in the ledger; a lost publish only delays
	// the driver finding out.
	msg := models.RideCancelledMessage{
		RideID:   cancelled.ID,
		DriverID: cancelled.Driver(),
		RiderID:  cancelled.RiderID,
	}
	if err := s.broker.PublishRideCancelled(ctx, msg); err != nil {
		s.logger.Error(ctx, "failed to publish ride cancellation", err)
	}

	cancelled.Status = types.StatusRiderCancelled
	cancelled.DriverID = nil
	now := s.now()
	cancelled.CancelledAt = &now

	s.logger.Info(ctx, "ride cancelled by rider")
	return cancelled, nil
}

// UpdateStatus applies one guarded lifecycle transition. The caller supplies
// the status it believes the ride is in; losing that compare-and-set is an
// ErrInvalidTransition, never a silent overwrite.
func (s *RideService) UpdateStatus(ctx context.Context, rideID uuid.UUID, from, to types.RideStatus, driverID *string) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "ride_status_update")
	ctx = wrap.WithRideID(ctx, rideID.String())

	if !from.CanTransitionTo(to) {
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}
	if to.HoldsDriver() && driverID == nil {
		// entering a driver-holding status without a driver on record
		// would break the ledger invariant, reject before touching it
		ride, err := s.repo.Get(ctx, rideID)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}
		if ride.DriverID == nil {
			return nil, wrap.Error(ctx, types.ErrInvalidTransition)
		}
	}

	ok, err := s.repo.UpdateStatusGuarded(ctx, rideID, from, to, driverID, s.now())
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not update ride status: %w", err))
	}
	if !ok {
		ride, err := s.repo.Get(ctx, rideID)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}
		s.logger.Warn(ctx, "status update lost its guard",
			"expected", from.String(), "actual", ride.Status.String())
		return nil, wrap.Error(ctx, types.ErrInvalidTransition)
	}

	metrics.RidesTotal.WithLabelValues(string(types.RideService), to.String()).Inc()

	ride, err := s.repo.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.logger.Info(ctx, "ride status updated", "from", from.String(), "to", to.String())
	return ride, nil
}

func (s *RideService) Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(wrap.WithRideID(ctx, rideID.String()), err)
	}
	return ride, nil
}

func (s *RideService) HistoryByRider(ctx context.Context, riderID string) ([]models.Ride, error) {
	rides, err := s.repo.ListByRider(ctx, riderID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not list rider history: %w", err))
	}
	return rides, nil
}

func (s *RideService) HistoryByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	rides, err := s.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not list driver history: %w", err))
	}
	return rides, nil
}
