package driver

import (
	"context"
	"fmt"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/metrics"
)

// PresenceService maintains driver availability and answers "what am I
// offered" queries. It also consumes the assignment and cancellation queues
// to keep the per-driver cache and the realtime channel in step with the
// ledger.
type PresenceService struct {
	presence    Presence
	assignments Assignments
	ledger      Ledger
	notifier    Notifier

	pendingLimit int

	l logger.Logger
}

func NewPresenceService(presence Presence, assignments Assignments, ledger Ledger, notifier Notifier, pendingLimit int, log logger.Logger) *PresenceService {
	if pendingLimit <= 0 {
		pendingLimit = 50
	}
	return &PresenceService{
		presence:     presence,
		assignments:  assignments,
		ledger:       ledger,
		notifier:     notifier,
		pendingLimit: pendingLimit,
		l:            log,
	}
}

// Online marks the driver available for matching. Idempotent.
func (s *PresenceService) Online(ctx context.Context, driverID string) error {
	ctx = wrap.WithAction(ctx, "driver_online")
	ctx = wrap.WithDriverID(ctx, driverID)

	if err := s.presence.MarkOnline(ctx, driverID); err != nil {
		return wrap.Error(ctx, err)
	}

	s.refreshOnlineGauge(ctx)
	s.l.Info(ctx, "driver online")
	return nil
}

// Offline withdraws the driver from matching and drops any cached offer.
// Rides the driver already holds in the ledger are unaffected.
func (s *PresenceService) Offline(ctx context.Context, driverID string) error {
	ctx = wrap.WithAction(ctx, "driver_offline")
	ctx = wrap.WithDriverID(ctx, driverID)

	if err := s.presence.MarkOffline(ctx, driverID); err != nil {
		return wrap.Error(ctx, err)
	}

	if err := s.assignments.Delete(ctx, driverID); err != nil {
		s.l.Error(ctx, "failed to clear assignment cache on offline", err)
	}

	s.refreshOnlineGauge(ctx)
	s.l.Info(ctx, "driver offline")
	return nil
}

// Assigned returns the driver's cached offer, or nil when there is none.
func (s *PresenceService) Assigned(ctx context.Context, driverID string) (*models.AssignmentRecord, error) {
	rec, err := s.assignments.Get(ctx, driverID)
	if err != nil {
		return nil, wrap.Error(wrap.WithDriverID(ctx, driverID), err)
	}
	return rec, nil
}

// Pending lists unmatched rides open for claiming, oldest first.
func (s *PresenceService) Pending(ctx context.Context) ([]models.Ride, error) {
	rides, err := s.ledger.ListPending(ctx, s.pendingLimit)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not list pending rides: %w", err))
	}
	return rides, nil
}

// HandleDriverAssigned is the driver_assignments consumer handler. The ledger
// is re-checked before caching: the assignment may already be stale by the
// time the message arrives.
func (s *PresenceService) HandleDriverAssigned(ctx context.Context, msg models.DriverAssignedMessage) error {
	ctx = wrap.WithAction(ctx, types.ActionRideAssigned)
	ctx = wrap.WithDriverID(ctx, msg.DriverID)
	ctx = wrap.WithRideID(ctx, msg.RideID.String())

	ride, err := s.ledger.Get(ctx, msg.RideID)
	if err != nil {
		return wrap.Error(ctx, err)
	}

	if !ride.OwnedBy(msg.DriverID) || !ride.Status.HoldsDriver() {
		s.l.Warn(ctx, "assignment message is stale, ignoring",
			"current_status", ride.Status.String())
		return nil
	}

	if err := s.assignments.Set(ctx, models.AssignmentFromRide(ride)); err != nil {
		return wrap.Error(ctx, err)
	}

	s.notify(ctx, msg.DriverID, map[string]any{
		"event":   "ride_assigned",
		"ride_id": ride.ID,
		"pickup":  ride.Pickup,
		"dropoff": ride.Dropoff,
	})

	s.l.Info(ctx, "assignment cached for driver")
	return nil
}

// HandleRideCancelled is the ride_cancelled consumer handler: it revokes the
// cached offer, but only if the cache still points at the cancelled ride. An
// out-of-order cancellation for a ride the driver no longer holds is a no-op.
func (s *PresenceService) HandleRideCancelled(ctx context.Context, msg models.RideCancelledMessage) error {
	ctx = wrap.WithAction(ctx, types.ActionAssignmentCleared)
	ctx = wrap.WithRideID(ctx, msg.RideID.String())

	if msg.DriverID == "" {
		// the ride was never matched, nothing cached anywhere
		return nil
	}
	ctx = wrap.WithDriverID(ctx, msg.DriverID)

	rec, err := s.assignments.Get(ctx, msg.DriverID)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	if rec == nil || rec.RideID != msg.RideID {
		s.l.Debug(ctx, "no matching cached assignment, nothing to revoke")
		return nil
	}

	if err := s.assignments.Delete(ctx, msg.DriverID); err != nil {
		return wrap.Error(ctx, err)
	}

	s.notify(ctx, msg.DriverID, map[string]any{
		"event":   "ride_cancelled",
		"ride_id": msg.RideID,
	})

	s.l.Info(ctx, "cached assignment revoked")
	return nil
}

func (s *PresenceService) notify(ctx context.Context, driverID string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendTo(driverID, payload); err != nil {
		s.l.Debug(ctx, "driver not reachable over websocket", "reason", err.Error())
	}
}

func (s *PresenceService) refreshOnlineGauge(ctx context.Context) {
	n, err := s.presence.Count(ctx)
	if err != nil {
		s.l.Debug(ctx, "failed to read online driver count", "reason", err.Error())
		return
	}
	metrics.DriversOnlineGauge.WithLabelValues(string(types.DriverService)).Set(float64(n))
}
