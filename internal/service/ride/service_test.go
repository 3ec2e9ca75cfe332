package ride

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

type memRepo struct {
	mu    sync.Mutex
	rides map[uuid.UUID]*models.Ride
}

func newMemRepo(rides ...*models.Ride) *memRepo {
	m := &memRepo{rides: make(map[uuid.UUID]*models.Ride)}
	for _, r := range rides {
		cp := *r
		m.rides[r.ID] = &cp
	}
	return m
}

func (m *memRepo) Get(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *ride
	return &cp, nil
}

func (m *memRepo) ListByRider(_ context.Context, riderID string) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.RiderID == riderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) ListByDriver(_ context.Context, driverID string) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.DriverID != nil && *r.DriverID == driverID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) CancelByRider(_ context.Context, rideID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return false, nil
	}
	if ride.Status != types.StatusRequested && ride.Status != types.StatusAssigned {
		return false, nil
	}
	ride.Status = types.StatusRiderCancelled
	ride.DriverID = nil
	ride.CancelledAt = &at
	return true, nil
}

func (m *memRepo) UpdateStatusGuarded(_ context.Context, rideID uuid.UUID, from, to types.RideStatus, driverID *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok || ride.Status != from {
		return false, nil
	}
	ride.Status = to
	switch {
	case to.IsCancelled():
		ride.DriverID = nil
		ride.CancelledAt = &at
	case to.HoldsDriver():
		if ride.DriverID == nil {
			ride.DriverID = driverID
		}
		if ride.AssignedAt == nil {
			ride.AssignedAt = &at
		}
	}
	return true, nil
}

type captureBroker struct {
	mu        sync.Mutex
	requested []models.RideRequestedMessage
	cancelled []models.RideCancelledMessage
	err       error
}

func (b *captureBroker) PublishRideRequested(_ context.Context, msg models.RideRequestedMessage) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requested = append(b.requested, msg)
	return nil
}

func (b *captureBroker) PublishRideCancelled(_ context.Context, msg models.RideCancelledMessage) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = append(b.cancelled, msg)
	return nil
}

// passTx runs the function without a real transaction.
type passTx struct{}

func (passTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newService(repo RideRepo, broker Broker) *RideService {
	return NewRideService(repo, broker, passTx{}, logger.InitLogger("test", logger.LevelError))
}

func TestRequest_EnqueuesWithCorrelationID(t *testing.T) {
	broker := &captureBroker{}
	svc := newService(newMemRepo(), broker)

	corrID, err := svc.Request(context.Background(), "rider-1", "Main St", "5th Ave")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if _, err := uuid.Parse(corrID); err != nil {
		t.Fatalf("correlation id is not a uuid: %q", corrID)
	}

	if len(broker.requested) != 1 {
		t.Fatalf("published %d request messages, want 1", len(broker.requested))
	}
	msg := broker.requested[0]
	if msg.RiderID != "rider-1" || msg.Pickup != "Main St" || msg.Dropoff != "5th Ave" {
		t.Fatalf("unexpected request message: %+v", msg)
	}
	if msg.CorrelationID != corrID {
		t.Fatalf("message correlation id %q != returned %q", msg.CorrelationID, corrID)
	}
}

func TestRequest_BrokerDownFailsIntake(t *testing.T) {
	broker := &captureBroker{err: types.ErrDependencyUnavailable}
	svc := newService(newMemRepo(), broker)

	if _, err := svc.Request(context.Background(), "rider-1", "a", "b"); !errors.Is(err, types.ErrDependencyUnavailable) {
		t.Fatalf("want ErrDependencyUnavailable, got %v", err)
	}
}

func TestCancel_RequestedRide(t *testing.T) {
	ride := &models.Ride{
		ID:          uuid.MustNew(),
		RiderID:     "rider-1",
		Status:      types.StatusRequested,
		RequestedAt: time.Now(),
	}
	repo := newMemRepo(ride)
	broker := &captureBroker{}
	svc := newService(repo, broker)

	got, err := svc.Cancel(context.Background(), ride.ID, "rider-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != types.StatusRiderCancelled {
		t.Fatalf("ride status = %s, want rider_cancelled", got.Status)
	}

	stored, _ := repo.Get(context.Background(), ride.ID)
	if stored.Status != types.StatusRiderCancelled {
		t.Fatalf("stored status = %s, want rider_cancelled", stored.Status)
	}

	if len(broker.cancelled) != 1 {
		t.Fatalf("published %d cancellations, want 1", len(broker.cancelled))
	}
	if broker.cancelled[0].DriverID != "" {
		t.Fatalf("unmatched ride must cancel with an empty driver id")
	}
}

func TestCancel_AssignedRideNamesDriver(t *testing.T) {
	driverID := "driver-1"
	now := time.Now()
	ride := &models.Ride{
		ID:          uuid.MustNew(),
		RiderID:     "rider-1",
		DriverID:    &driverID,
		Status:      types.StatusAssigned,
		RequestedAt: now,
		AssignedAt:  &now,
	}
	broker := &captureBroker{}
	svc := newService(newMemRepo(ride), broker)

	if _, err := svc.Cancel(context.Background(), ride.ID, "rider-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(broker.cancelled) != 1 || broker.cancelled[0].DriverID != driverID {
		t.Fatalf("cancellation must carry the assigned driver id: %+v", broker.cancelled)
	}
}

func TestCancel_WrongRider(t *testing.T) {
	ride := &models.Ride{ID: uuid.MustNew(), RiderID: "rider-1", Status: types.StatusRequested}
	svc := newService(newMemRepo(ride), &captureBroker{})

	// a foreign ride looks like a missing ride, not a forbidden one
	if _, err := svc.Cancel(context.Background(), ride.ID, "rider-2"); !errors.Is(err, types.ErrRideNotFound) {
		t.Fatalf("want ErrRideNotFound, got %v", err)
	}
}

func TestCancel_TooLate(t *testing.T) {
	driverID := "driver-1"
	ride := &models.Ride{ID: uuid.MustNew(), RiderID: "rider-1", DriverID: &driverID, Status: types.StatusOngoing}
	broker := &captureBroker{}
	svc := newService(newMemRepo(ride), broker)

	if _, err := svc.Cancel(context.Background(), ride.ID, "rider-1"); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if len(broker.cancelled) != 0 {
		t.Fatalf("a refused cancellation must not publish")
	}
}

func TestUpdateStatus_GuardLoss(t *testing.T) {
	ride := &models.Ride{ID: uuid.MustNew(), RiderID: "rider-1", Status: types.StatusRequested}
	svc := newService(newMemRepo(ride), &captureBroker{})

	driverID := "driver-1"
	// caller believes the ride is assigned, it is still requested
	if _, err := svc.UpdateStatus(context.Background(), ride.ID, types.StatusAssigned, types.StatusOngoing, &driverID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatus_IllegalPairRejectedEarly(t *testing.T) {
	svc := newService(newMemRepo(), &captureBroker{})

	if _, err := svc.UpdateStatus(context.Background(), uuid.MustNew(), types.StatusCompleted, types.StatusOngoing, nil); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatus_AppliesTransition(t *testing.T) {
	driverID := "driver-1"
	now := time.Now()
	ride := &models.Ride{
		ID:          uuid.MustNew(),
		RiderID:     "rider-1",
		DriverID:    &driverID,
		Status:      types.StatusAccepted,
		RequestedAt: now,
		AssignedAt:  &now,
	}
	svc := newService(newMemRepo(ride), &captureBroker{})

	got, err := svc.UpdateStatus(context.Background(), ride.ID, types.StatusAccepted, types.StatusOngoing, nil)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != types.StatusOngoing {
		t.Fatalf("ride status = %s, want ongoing", got.Status)
	}
}

func TestHistory_ByRiderAndDriver(t *testing.T) {
	driverID := "driver-1"
	a := &models.Ride{ID: uuid.MustNew(), RiderID: "rider-1", Status: types.StatusCompleted, DriverID: &driverID}
	b := &models.Ride{ID: uuid.MustNew(), RiderID: "rider-1", Status: types.StatusRequested}
	c := &models.Ride{ID: uuid.MustNew(), RiderID: "rider-2", Status: types.StatusRequested}
	svc := newService(newMemRepo(a, b, c), &captureBroker{})

	riderRides, err := svc.HistoryByRider(context.Background(), "rider-1")
	if err != nil {
		t.Fatalf("HistoryByRider: %v", err)
	}
	if len(riderRides) != 2 {
		t.Fatalf("rider history has %d rides, want 2", len(riderRides))
	}

	driverRides, err := svc.HistoryByDriver(context.Background(), "driver-1")
	if err != nil {
		t.Fatalf("HistoryByDriver: %v", err)
	}
	if len(driverRides) != 1 {
		t.Fatalf("driver history has %d rides, want 1", len(driverRides))
	}
}
