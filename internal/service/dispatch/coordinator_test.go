package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

type memLedger struct {
	mu    sync.Mutex
	rides map[uuid.UUID]*models.Ride
}

func newMemLedger() *memLedger {
	return &memLedger{rides: make(map[uuid.UUID]*models.Ride)}
}

func (m *memLedger) Create(_ context.Context, ride *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; ok {
		return nil
	}
	cp := *ride
	m.rides[ride.ID] = &cp
	return nil
}

func (m *memLedger) Get(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *ride
	return &cp, nil
}

func (m *memLedger) AssignDriver(_ context.Context, rideID uuid.UUID, driverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok || ride.Status != types.StatusRequested || ride.DriverID != nil {
		return false, nil
	}
	ride.Status = types.StatusAssigned
	ride.DriverID = &driverID
	ride.AssignedAt = &at
	return true, nil
}

type stubPresence struct {
	driverID string
	err      error
}

func (s *stubPresence) Random(context.Context) (string, error) {
	return s.driverID, s.err
}

type memAssignments struct {
	mu   sync.Mutex
	recs map[string]models.AssignmentRecord
	err  error
}

func newMemAssignments() *memAssignments {
	return &memAssignments{recs: make(map[string]models.AssignmentRecord)}
}

func (m *memAssignments) Set(_ context.Context, rec models.AssignmentRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.DriverID] = rec
	return nil
}

type captureBroker struct {
	mu       sync.Mutex
	assigned []models.DriverAssignedMessage
}

func (b *captureBroker) PublishDriverAssigned(_ context.Context, msg models.DriverAssignedMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assigned = append(b.assigned, msg)
	return nil
}

func testLogger() logger.Logger {
	return logger.InitLogger("test", logger.LevelError)
}

func directPickFixture(presence *stubPresence) (*Coordinator, *memLedger, *memAssignments, *captureBroker) {
	ledger := newMemLedger()
	assignments := newMemAssignments()
	broker := &captureBroker{}
	log := testLogger()

	policy := NewDirectPickPolicy(ledger, presence, assignments, broker, 1, time.Millisecond, log)
	return NewCoordinator(ledger, policy, log), ledger, assignments, broker
}

func requestMsg() models.RideRequestedMessage {
	return models.RideRequestedMessage{
		RiderID:       "rider-1",
		Pickup:        "Main St",
		Dropoff:       "5th Ave",
		CorrelationID: uuid.MustNew().String(),
	}
}

func TestCoordinator_DirectPick_AssignsDriver(t *testing.T) {
	coord, ledger, assignments, broker := directPickFixture(&stubPresence{driverID: "driver-1"})

	msg := requestMsg()
	if err := coord.HandleRideRequested(context.Background(), msg); err != nil {
		t.Fatalf("HandleRideRequested: %v", err)
	}

	rideID, _ := uuid.Parse(msg.CorrelationID)
	ride, err := ledger.Get(context.Background(), rideID)
	if err != nil {
		t.Fatalf("ride was not created: %v", err)
	}
	if ride.Status != types.StatusAssigned {
		t.Fatalf("ride status = %s, want assigned", ride.Status)
	}
	if ride.Driver() != "driver-1" {
		t.Fatalf("ride driver = %q, want driver-1", ride.Driver())
	}
	if ride.AssignedAt == nil {
		t.Fatalf("assigned_at was not stamped")
	}

	rec, ok := assignments.recs["driver-1"]
	if !ok {
		t.Fatalf("assignment was not cached for driver-1")
	}
	if rec.RideID != rideID || rec.Pickup != "Main St" {
		t.Fatalf("cached record does not match ride: %+v", rec)
	}

	if len(broker.assigned) != 1 {
		t.Fatalf("published %d assignment messages, want 1", len(broker.assigned))
	}
	if broker.assigned[0].DriverID != "driver-1" || broker.assigned[0].RideID != rideID {
		t.Fatalf("unexpected assignment message: %+v", broker.assigned[0])
	}
}

func TestCoordinator_DirectPick_NoDriversLeavesRequested(t *testing.T) {
	coord, ledger, _, broker := directPickFixture(&stubPresence{err: types.ErrNoDriversAvailable})

	msg := requestMsg()
	if err := coord.HandleRideRequested(context.Background(), msg); err != nil {
		t.Fatalf("an empty registry must not fail the message: %v", err)
	}

	rideID, _ := uuid.Parse(msg.CorrelationID)
	ride, err := ledger.Get(context.Background(), rideID)
	if err != nil {
		t.Fatalf("ride was not created: %v", err)
	}
	if ride.Status != types.StatusRequested {
		t.Fatalf("ride status = %s, want requested", ride.Status)
	}
	if len(broker.assigned) != 0 {
		t.Fatalf("no assignment should be published")
	}
}

func TestCoordinator_Redelivery_ConvergesOnOneRide(t *testing.T) {
	coord, ledger, _, broker := directPickFixture(&stubPresence{driverID: "driver-1"})

	msg := requestMsg()
	for range 3 {
		if err := coord.HandleRideRequested(context.Background(), msg); err != nil {
			t.Fatalf("HandleRideRequested: %v", err)
		}
	}

	if n := len(ledger.rides); n != 1 {
		t.Fatalf("redelivery created %d rides, want 1", n)
	}
	if len(broker.assigned) != 1 {
		t.Fatalf("redelivery published %d assignments, want 1", len(broker.assigned))
	}

	rideID, _ := uuid.Parse(msg.CorrelationID)
	ride, _ := ledger.Get(context.Background(), rideID)
	if ride.Driver() != "driver-1" {
		t.Fatalf("ride driver = %q, want driver-1", ride.Driver())
	}
}

func TestCoordinator_CacheFailureDoesNotUndoAssignment(t *testing.T) {
	ledger := newMemLedger()
	assignments := newMemAssignments()
	assignments.err = types.ErrDependencyUnavailable
	broker := &captureBroker{}
	log := testLogger()

	policy := NewDirectPickPolicy(ledger, &stubPresence{driverID: "driver-1"}, assignments, broker, 1, time.Millisecond, log)
	coord := NewCoordinator(ledger, policy, log)

	msg := requestMsg()
	if err := coord.HandleRideRequested(context.Background(), msg); err != nil {
		t.Fatalf("cache trouble must not fail the message: %v", err)
	}

	rideID, _ := uuid.Parse(msg.CorrelationID)
	ride, _ := ledger.Get(context.Background(), rideID)
	if ride.Status != types.StatusAssigned {
		t.Fatalf("assignment must stand even when the cache write fails, got %s", ride.Status)
	}
	if len(broker.assigned) != 1 {
		t.Fatalf("assignment message must still be published")
	}
}

func TestCoordinator_Broadcast_LeavesRideOpen(t *testing.T) {
	ledger := newMemLedger()
	log := testLogger()
	coord := NewCoordinator(ledger, NewBroadcastPolicy(log), log)

	msg := requestMsg()
	if err := coord.HandleRideRequested(context.Background(), msg); err != nil {
		t.Fatalf("HandleRideRequested: %v", err)
	}

	rideID, _ := uuid.Parse(msg.CorrelationID)
	ride, err := ledger.Get(context.Background(), rideID)
	if err != nil {
		t.Fatalf("ride was not created: %v", err)
	}
	if ride.Status != types.StatusRequested || ride.DriverID != nil {
		t.Fatalf("broadcast ride must stay unmatched, got %s driver=%q", ride.Status, ride.Driver())
	}
}
