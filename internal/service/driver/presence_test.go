package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

type memPresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newMemPresence() *memPresence {
	return &memPresence{online: make(map[string]bool)}
}

func (m *memPresence) MarkOnline(_ context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[driverID] = true
	return nil
}

func (m *memPresence) MarkOffline(_ context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.online, driverID)
	return nil
}

func (m *memPresence) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.online)), nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent map[string][]any
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{sent: make(map[string][]any)}
}

func (n *captureNotifier) SendTo(driverID string, msg any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[driverID] = append(n.sent[driverID], msg)
	return nil
}

func presenceFixture(ledger Ledger) (*PresenceService, *memPresence, *memAssignments, *captureNotifier) {
	presence := newMemPresence()
	assignments := newMemAssignments()
	notifier := newCaptureNotifier()
	svc := NewPresenceService(presence, assignments, ledger, notifier, 10, testLogger())
	return svc, presence, assignments, notifier
}

func TestOnlineOffline_Lifecycle(t *testing.T) {
	svc, presence, assignments, _ := presenceFixture(newMemLedger())
	ctx := context.Background()

	if err := svc.Online(ctx, "driver-1"); err != nil {
		t.Fatalf("online: %v", err)
	}
	if n, _ := presence.Count(ctx); n != 1 {
		t.Fatalf("online count = %d, want 1", n)
	}

	// going offline drops the cached offer too
	_ = assignments.Set(ctx, models.AssignmentRecord{DriverID: "driver-1", RideID: uuid.MustNew()})
	if err := svc.Offline(ctx, "driver-1"); err != nil {
		t.Fatalf("offline: %v", err)
	}
	if n, _ := presence.Count(ctx); n != 0 {
		t.Fatalf("online count = %d, want 0", n)
	}
	if rec, _ := assignments.Get(ctx, "driver-1"); rec != nil {
		t.Fatalf("offline must clear the cached assignment")
	}
}

func TestHandleDriverAssigned_CachesAndNotifies(t *testing.T) {
	ride := assignedRide("driver-1")
	svc, _, assignments, notifier := presenceFixture(newMemLedger(ride))
	ctx := context.Background()

	msg := models.DriverAssignedMessage{
		RideID:   ride.ID,
		RiderID:  ride.RiderID,
		DriverID: "driver-1",
		Pickup:   ride.Pickup,
		Dropoff:  ride.Dropoff,
	}
	if err := svc.HandleDriverAssigned(ctx, msg); err != nil {
		t.Fatalf("HandleDriverAssigned: %v", err)
	}

	rec, _ := assignments.Get(ctx, "driver-1")
	if rec == nil || rec.RideID != ride.ID {
		t.Fatalf("assignment was not cached: %+v", rec)
	}
	if len(notifier.sent["driver-1"]) != 1 {
		t.Fatalf("driver was not notified")
	}
}

func TestHandleDriverAssigned_StaleMessageIgnored(t *testing.T) {
	// the ride got cancelled before the assignment message arrived
	ride := requestedRide()
	now := time.Now()
	ride.Status = types.StatusRiderCancelled
	ride.CancelledAt = &now

	svc, _, assignments, notifier := presenceFixture(newMemLedger(ride))
	ctx := context.Background()

	msg := models.DriverAssignedMessage{RideID: ride.ID, DriverID: "driver-1"}
	if err := svc.HandleDriverAssigned(ctx, msg); err != nil {
		t.Fatalf("stale message must not fail: %v", err)
	}

	if rec, _ := assignments.Get(ctx, "driver-1"); rec != nil {
		t.Fatalf("stale assignment must not be cached")
	}
	if len(notifier.sent["driver-1"]) != 0 {
		t.Fatalf("no notification expected for a stale assignment")
	}
}

func TestHandleRideCancelled_RevokesMatchingOffer(t *testing.T) {
	ride := assignedRide("driver-1")
	svc, _, assignments, notifier := presenceFixture(newMemLedger(ride))
	ctx := context.Background()

	_ = assignments.Set(ctx, models.AssignmentFromRide(ride))

	msg := models.RideCancelledMessage{RideID: ride.ID, DriverID: "driver-1", RiderID: ride.RiderID}
	if err := svc.HandleRideCancelled(ctx, msg); err != nil {
		t.Fatalf("HandleRideCancelled: %v", err)
	}

	if rec, _ := assignments.Get(ctx, "driver-1"); rec != nil {
		t.Fatalf("cancellation must revoke the cached offer")
	}
	if len(notifier.sent["driver-1"]) != 1 {
		t.Fatalf("driver was not told about the cancellation")
	}
}

func TestHandleRideCancelled_OutOfOrderIsNoop(t *testing.T) {
	// by the time the cancellation arrives the driver already holds a
	// different ride; that offer must survive
	oldRide := assignedRide("driver-1")
	newRide := assignedRide("driver-1")

	svc, _, assignments, _ := presenceFixture(newMemLedger(oldRide, newRide))
	ctx := context.Background()

	_ = assignments.Set(ctx, models.AssignmentFromRide(newRide))

	msg := models.RideCancelledMessage{RideID: oldRide.ID, DriverID: "driver-1"}
	if err := svc.HandleRideCancelled(ctx, msg); err != nil {
		t.Fatalf("HandleRideCancelled: %v", err)
	}

	rec, _ := assignments.Get(ctx, "driver-1")
	if rec == nil || rec.RideID != newRide.ID {
		t.Fatalf("the newer offer must survive an out-of-order cancellation")
	}
}

func TestHandleRideCancelled_UnmatchedRide(t *testing.T) {
	svc, _, _, _ := presenceFixture(newMemLedger())

	msg := models.RideCancelledMessage{RideID: uuid.MustNew()}
	if err := svc.HandleRideCancelled(context.Background(), msg); err != nil {
		t.Fatalf("unmatched cancellation must be a no-op: %v", err)
	}
}

func TestPending_ListsOpenRides(t *testing.T) {
	first := requestedRide()
	first.RequestedAt = time.Now().Add(-time.Minute)
	second := requestedRide()
	taken := assignedRide("driver-2")

	svc, _, _, _ := presenceFixture(newMemLedger(first, second, taken))

	rides, err := svc.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(rides) != 2 {
		t.Fatalf("got %d pending rides, want 2", len(rides))
	}
	if rides[0].ID != first.ID {
		t.Fatalf("pending rides must come oldest first")
	}
}
