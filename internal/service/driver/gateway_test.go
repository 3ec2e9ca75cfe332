package driver

import (
	"context"
	"errors"
	"sort"
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

func newMemLedger(rides ...*models.Ride) *memLedger {
	m := &memLedger{rides: make(map[uuid.UUID]*models.Ride)}
	for _, r := range rides {
		cp := *r
		m.rides[r.ID] = &cp
	}
	return m
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

func (m *memLedger) ListPending(_ context.Context, limit int) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.Status == types.StatusRequested {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedger) ClaimRequested(_ context.Context, rideID uuid.UUID, driverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok || ride.Status != types.StatusRequested || ride.DriverID != nil {
		return false, nil
	}
	ride.Status = types.StatusAccepted
	ride.DriverID = &driverID
	ride.AssignedAt = &at
	return true, nil
}

func (m *memLedger) TransitionOwned(_ context.Context, rideID uuid.UUID, driverID string, from []types.RideStatus, to types.RideStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok || ride.DriverID == nil || *ride.DriverID != driverID {
		return false, nil
	}
	matched := false
	for _, f := range from {
		if ride.Status == f {
			matched = true
		}
	}
	if !matched {
		return false, nil
	}
	ride.Status = to
	switch to {
	case types.StatusAccepted:
		if ride.AssignedAt == nil {
			ride.AssignedAt = &at
		}
	case types.StatusOngoing:
		ride.StartedAt = &at
	case types.StatusCompleted:
		ride.CompletedAt = &at
	case types.StatusDriverCancelled:
		ride.CancelledAt = &at
		ride.DriverID = nil
	}
	return true, nil
}

type memAssignments struct {
	mu   sync.Mutex
	recs map[string]models.AssignmentRecord
}

func newMemAssignments() *memAssignments {
	return &memAssignments{recs: make(map[string]models.AssignmentRecord)}
}

func (m *memAssignments) Set(_ context.Context, rec models.AssignmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.DriverID] = rec
	return nil
}

func (m *memAssignments) Get(_ context.Context, driverID string) (*models.AssignmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[driverID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memAssignments) Delete(_ context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, driverID)
	return nil
}

type captureBroker struct {
	mu        sync.Mutex
	cancelled []models.RideCancelledMessage
}

func (b *captureBroker) PublishRideCancelled(_ context.Context, msg models.RideCancelledMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = append(b.cancelled, msg)
	return nil
}

func testLogger() logger.Logger {
	return logger.InitLogger("test", logger.LevelError)
}

func requestedRide() *models.Ride {
	return &models.Ride{
		ID:          uuid.MustNew(),
		RiderID:     "rider-1",
		Pickup:      "Main St",
		Dropoff:     "5th Ave",
		Status:      types.StatusRequested,
		RequestedAt: time.Now(),
	}
}

func assignedRide(driverID string) *models.Ride {
	ride := requestedRide()
	now := time.Now()
	ride.Status = types.StatusAssigned
	ride.DriverID = &driverID
	ride.AssignedAt = &now
	return ride
}

func newGateway(ledger Ledger, assignments Assignments, broker Broker) *Gateway {
	return NewGateway(ledger, assignments, broker, testLogger())
}

func TestAccept_RaceExactlyOneWinner(t *testing.T) {
	ride := requestedRide()
	ledger := newMemLedger(ride)
	gw := newGateway(ledger, newMemAssignments(), &captureBroker{})

	results := make(chan error, 2)
	start := make(chan struct{})

	for _, driverID := range []string{"driver-a", "driver-b"} {
		go func() {
			<-start
			_, err := gw.Accept(context.Background(), driverID, ride.ID)
			results <- err
		}()
	}
	close(start)

	var wins, losses int
	for range 2 {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, types.ErrRideAlreadyTaken):
			losses++
		default:
			t.Fatalf("unexpected accept error: %v", err)
		}
	}

	if wins != 1 || losses != 1 {
		t.Fatalf("got %d winners and %d losers, want exactly 1 of each", wins, losses)
	}

	final, _ := ledger.Get(context.Background(), ride.ID)
	if final.Status != types.StatusAccepted || final.DriverID == nil {
		t.Fatalf("final ride state: %s driver=%q", final.Status, final.Driver())
	}
}

func TestAccept_AssignedRideByItsDriver(t *testing.T) {
	ride := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	assignments := newMemAssignments()
	gw := newGateway(ledger, assignments, &captureBroker{})

	got, err := gw.Accept(context.Background(), "driver-1", ride.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.Status != types.StatusAccepted {
		t.Fatalf("ride status = %s, want accepted", got.Status)
	}

	rec, _ := assignments.Get(context.Background(), "driver-1")
	if rec == nil || rec.Status != types.StatusAccepted {
		t.Fatalf("cache was not refreshed after accept: %+v", rec)
	}
}

func TestAccept_Idempotent(t *testing.T) {
	ride := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	gw := newGateway(ledger, newMemAssignments(), &captureBroker{})

	if _, err := gw.Accept(context.Background(), "driver-1", ride.ID); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	got, err := gw.Accept(context.Background(), "driver-1", ride.ID)
	if err != nil {
		t.Fatalf("repeated accept must succeed: %v", err)
	}
	if got.Status != types.StatusAccepted {
		t.Fatalf("ride status = %s, want accepted", got.Status)
	}
}

func TestAccept_RideHeldByAnotherDriver(t *testing.T) {
	ride := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	gw := newGateway(ledger, newMemAssignments(), &captureBroker{})

	if _, err := gw.Accept(context.Background(), "driver-2", ride.ID); !errors.Is(err, types.ErrRideAlreadyTaken) {
		t.Fatalf("want ErrRideAlreadyTaken, got %v", err)
	}
}

func TestAccept_UnknownRide(t *testing.T) {
	gw := newGateway(newMemLedger(), newMemAssignments(), &captureBroker{})

	if _, err := gw.Accept(context.Background(), "driver-1", uuid.MustNew()); !errors.Is(err, types.ErrRideNotFound) {
		t.Fatalf("want ErrRideNotFound, got %v", err)
	}
}

func TestStartAndComplete_FullFlow(t *testing.T) {
	ride := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	assignments := newMemAssignments()
	gw := newGateway(ledger, assignments, &captureBroker{})

	if _, err := gw.Accept(context.Background(), "driver-1", ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	started, err := gw.Start(context.Background(), "driver-1", ride.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != types.StatusOngoing || started.StartedAt == nil {
		t.Fatalf("start did not take: %s", started.Status)
	}

	done, err := gw.Complete(context.Background(), "driver-1", ride.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != types.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("complete did not take: %s", done.Status)
	}

	if rec, _ := assignments.Get(context.Background(), "driver-1"); rec != nil {
		t.Fatalf("completion must clear the cached assignment, got %+v", rec)
	}
}

func TestComplete_RequiresOngoing(t *testing.T) {
	ride := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	gw := newGateway(ledger, newMemAssignments(), &captureBroker{})

	if _, err := gw.Complete(context.Background(), "driver-1", ride.ID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestTransition_WrongDriver(t *testing.T) {
	ride := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	gw := newGateway(ledger, newMemAssignments(), &captureBroker{})

	if _, err := gw.Start(context.Background(), "driver-2", ride.ID); !errors.Is(err, types.ErrNotRideOwner) {
		t.Fatalf("want ErrNotRideOwner, got %v", err)
	}
}

func TestCancelByDriver_ReleasesAndPublishes(t *testing.T) {
	ride := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	assignments := newMemAssignments()
	broker := &captureBroker{}
	gw := newGateway(ledger, assignments, broker)

	got, err := gw.CancelByDriver(context.Background(), "driver-1", ride.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != types.StatusDriverCancelled {
		t.Fatalf("ride status = %s, want driver_cancelled", got.Status)
	}
	if got.DriverID != nil {
		t.Fatalf("cancellation must release the driver claim")
	}

	if len(broker.cancelled) != 1 {
		t.Fatalf("published %d cancellations, want 1", len(broker.cancelled))
	}
	if broker.cancelled[0].DriverID != "driver-1" || broker.cancelled[0].RideID != ride.ID {
		t.Fatalf("unexpected cancellation message: %+v", broker.cancelled[0])
	}
}

func TestDecline_OnlyClearsMatchingOffer(t *testing.T) {
	ride := assignedRide("driver-1")
	other := assignedRide("driver-1")
	ledger := newMemLedger(ride)
	assignments := newMemAssignments()
	gw := newGateway(ledger, assignments, &captureBroker{})

	_ = assignments.Set(context.Background(), models.AssignmentFromRide(ride))

	// declining a different ride leaves the cached offer alone
	if err := gw.Decline(context.Background(), "driver-1", other.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if rec, _ := assignments.Get(context.Background(), "driver-1"); rec == nil {
		t.Fatalf("mismatched decline must not clear the offer")
	}

	if err := gw.Decline(context.Background(), "driver-1", ride.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if rec, _ := assignments.Get(context.Background(), "driver-1"); rec != nil {
		t.Fatalf("decline must clear the matching offer")
	}

	// the ledger claim is untouched
	current, _ := ledger.Get(context.Background(), ride.ID)
	if current.Status != types.StatusAssigned {
		t.Fatalf("decline must not touch the ledger, got %s", current.Status)
	}
}
