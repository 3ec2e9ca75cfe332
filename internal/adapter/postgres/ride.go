package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

const rideColumns = `id, rider_id, driver_id, pickup, dropoff, status,
	requested_at, assigned_at, started_at, completed_at, cancelled_at`

// RideRepo is the ledger adapter. All contended writes go through single
// UPDATE statements guarded on the current status, so a lost race surfaces as
// zero affected rows instead of a silent overwrite.
type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

func (r *RideRepo) Create(ctx context.Context, ride *models.Ride) error {
	q := TxorDB(ctx, r.db)

	// ON CONFLICT makes redelivered request messages a no-op: the ride id is
	// derived from the request's correlation id, so a duplicate insert means
	// the record already exists.
	query := `
		INSERT INTO rides (id, rider_id, pickup, dropoff, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;`

	if _, err := q.Exec(ctx, query,
		ride.ID, ride.RiderID, ride.Pickup, ride.Dropoff, ride.Status, ride.RequestedAt,
	); err != nil {
		return fmt.Errorf("ride repo: Create: %w", err)
	}

	return nil
}

func (r *RideRepo) Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1;`

	ride, err := scanRide(q.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("ride repo: Get: %w", err)
	}

	return ride, nil
}

func (r *RideRepo) ListByRider(ctx context.Context, riderID string) ([]models.Ride, error) {
	return r.list(ctx, `SELECT `+rideColumns+` FROM rides WHERE rider_id = $1 ORDER BY requested_at DESC;`, riderID)
}

func (r *RideRepo) ListByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	return r.list(ctx, `SELECT `+rideColumns+` FROM rides WHERE driver_id = $1 ORDER BY requested_at DESC;`, driverID)
}

// ListPending returns unmatched rides, oldest first. Under the broadcast
// policy this is what every online driver polls.
func (r *RideRepo) ListPending(ctx context.Context, limit int) ([]models.Ride, error) {
	return r.list(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE status = $1 ORDER BY requested_at LIMIT $2;`,
		types.StatusRequested, limit,
	)
}

func (r *RideRepo) list(ctx context.Context, query string, args ...any) ([]models.Ride, error) {
	q := TxorDB(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ride repo: list: %w", err)
	}
	defer rows.Close()

	var rides []models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("ride repo: list scan: %w", err)
		}
		rides = append(rides, *ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ride repo: list rows: %w", err)
	}

	return rides, nil
}

// AssignDriver moves an unmatched ride to 'assigned' for the given driver.
// The WHERE clause is the race guard: exactly one concurrent writer sees a
// non-zero row count.
func (r *RideRepo) AssignDriver(ctx context.Context, rideID uuid.UUID, driverID string, at time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET status = $3, driver_id = $2, assigned_at = COALESCE(assigned_at, $4), updated_at = now()
		WHERE id = $1 AND status = $5 AND driver_id IS NULL;`

	tag, err := q.Exec(ctx, query, rideID, driverID, types.StatusAssigned, at, types.StatusRequested)
	if err != nil {
		return false, fmt.Errorf("ride repo: AssignDriver: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ClaimRequested moves an unmatched ride straight to 'accepted' for the
// driver that won the broadcast race.
func (r *RideRepo) ClaimRequested(ctx context.Context, rideID uuid.UUID, driverID string, at time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET status = $3, driver_id = $2, assigned_at = COALESCE(assigned_at, $4), updated_at = now()
		WHERE id = $1 AND status = $5 AND driver_id IS NULL;`

	tag, err := q.Exec(ctx, query, rideID, driverID, types.StatusAccepted, at, types.StatusRequested)
	if err != nil {
		return false, fmt.Errorf("ride repo: ClaimRequested: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// TransitionOwned applies a guarded transition on a ride the driver already
// holds. Cancellation targets release driver_id; the other targets stamp
// their timestamp column exactly once via COALESCE.
func (r *RideRepo) TransitionOwned(ctx context.Context, rideID uuid.UUID, driverID string, from []types.RideStatus, to types.RideStatus, at time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	driverClause := "driver_id = driver_id"
	if to == types.StatusDriverCancelled {
		driverClause = "driver_id = NULL"
	}

	query := fmt.Sprintf(`
		UPDATE rides
		SET status = $3, %s = COALESCE(%s, $4), %s, updated_at = now()
		WHERE id = $1 AND driver_id = $2 AND status = ANY($5);`,
		timestampColumn(to), timestampColumn(to), driverClause)

	tag, err := q.Exec(ctx, query, rideID, driverID, to, at, statusStrings(from))
	if err != nil {
		return false, fmt.Errorf("ride repo: TransitionOwned: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CancelByRider moves a requested or assigned ride to 'rider_cancelled' and
// releases the driver claim if any.
func (r *RideRepo) CancelByRider(ctx context.Context, rideID uuid.UUID, at time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET status = $2, driver_id = NULL, cancelled_at = COALESCE(cancelled_at, $3), updated_at = now()
		WHERE id = $1 AND status = ANY($4);`

	tag, err := q.Exec(ctx, query, rideID, types.StatusRiderCancelled, at,
		statusStrings([]types.RideStatus{types.StatusRequested, types.StatusAssigned}))
	if err != nil {
		return false, fmt.Errorf("ride repo: CancelByRider: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// UpdateStatusGuarded is the generic compare-and-set behind the status update
// endpoint: the ride must still be in 'from' for the write to land.
func (r *RideRepo) UpdateStatusGuarded(ctx context.Context, rideID uuid.UUID, from, to types.RideStatus, driverID *string, at time.Time) (bool, error) {
	q := TxorDB(ctx, r.db)

	args := []any{rideID, from, to, at}

	driverClause := "driver_id = driver_id"
	switch {
	case to.IsCancelled():
		driverClause = "driver_id = NULL"
	case to.HoldsDriver():
		driverClause = "driver_id = COALESCE($5, driver_id)"
		args = append(args, driverID)
	}

	query := fmt.Sprintf(`
		UPDATE rides
		SET status = $3, %s = COALESCE(%s, $4), %s, updated_at = now()
		WHERE id = $1 AND status = $2;`,
		timestampColumn(to), timestampColumn(to), driverClause)

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("ride repo: UpdateStatusGuarded: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// timestampColumn maps a target status to the column it stamps.
func timestampColumn(to types.RideStatus) string {
	switch to {
	case types.StatusAssigned, types.StatusAccepted:
		return "assigned_at"
	case types.StatusOngoing:
		return "started_at"
	case types.StatusCompleted:
		return "completed_at"
	case types.StatusRiderCancelled, types.StatusDriverCancelled:
		return "cancelled_at"
	default:
		return "updated_at"
	}
}

func statusStrings(statuses []types.RideStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var ride models.Ride
	err := row.Scan(
		&ride.ID, &ride.RiderID, &ride.DriverID, &ride.Pickup, &ride.Dropoff, &ride.Status,
		&ride.RequestedAt, &ride.AssignedAt, &ride.StartedAt, &ride.CompletedAt, &ride.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}
