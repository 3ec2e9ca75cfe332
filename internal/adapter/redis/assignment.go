package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
)

// AssignmentCache stores the per-driver visibility snapshot under
// assignment:{driverId}. Writes are last-write-wins and deletes are
// idempotent; the ledger is never derived from this cache.
type AssignmentCache struct {
	rdb *redis.Client

	// ttl is an optional safety net against orphaned records; zero means
	// records live until explicitly cleared.
	ttl time.Duration
}

func NewAssignmentCache(rdb *redis.Client, ttl time.Duration) *AssignmentCache {
	return &AssignmentCache{rdb: rdb, ttl: ttl}
}

func assignmentKey(driverID string) string {
	return "assignment:" + driverID
}

func (c *AssignmentCache) Set(ctx context.Context, rec models.AssignmentRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("assignment cache: marshal: %w", err)
	}

	if err := c.rdb.Set(ctx, assignmentKey(rec.DriverID), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("assignment cache: set: %w: %w", types.ErrDependencyUnavailable, err)
	}
	return nil
}

// Get returns the driver's current snapshot, or (nil, nil) when the driver
// holds no offer. Absence is an ordinary answer, not an error.
func (c *AssignmentCache) Get(ctx context.Context, driverID string) (*models.AssignmentRecord, error) {
	raw, err := c.rdb.Get(ctx, assignmentKey(driverID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("assignment cache: get: %w: %w", types.ErrDependencyUnavailable, err)
	}

	var rec models.AssignmentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("assignment cache: unmarshal: %w", err)
	}
	return &rec, nil
}

// Delete clears the driver's snapshot. Deleting an absent record is a no-op.
func (c *AssignmentCache) Delete(ctx context.Context, driverID string) error {
	if err := c.rdb.Del(ctx, assignmentKey(driverID)).Err(); err != nil {
		return fmt.Errorf("assignment cache: delete: %w: %w", types.ErrDependencyUnavailable, err)
	}
	return nil
}
