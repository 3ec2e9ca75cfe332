package redisadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
)

const presenceKey = "presence:online"

// PresenceRegistry holds the set of currently-available driver ids. Existence
// in the set is the whole signal; there is no payload and no heartbeat expiry,
// a driver stays present until it explicitly marks offline.
type PresenceRegistry struct {
	rdb *redis.Client
}

func NewPresenceRegistry(rdb *redis.Client) *PresenceRegistry {
	return &PresenceRegistry{rdb: rdb}
}

func (p *PresenceRegistry) MarkOnline(ctx context.Context, driverID string) error {
	if err := p.rdb.SAdd(ctx, presenceKey, driverID).Err(); err != nil {
		return fmt.Errorf("presence: mark online: %w: %w", types.ErrDependencyUnavailable, err)
	}
	return nil
}

func (p *PresenceRegistry) MarkOffline(ctx context.Context, driverID string) error {
	if err := p.rdb.SRem(ctx, presenceKey, driverID).Err(); err != nil {
		return fmt.Errorf("presence: mark offline: %w: %w", types.ErrDependencyUnavailable, err)
	}
	return nil
}

// Random draws one online driver uniformly at random.
// Returns ErrNoDriversAvailable when the registry is empty.
func (p *PresenceRegistry) Random(ctx context.Context) (string, error) {
	driverID, err := p.rdb.SRandMember(ctx, presenceKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", types.ErrNoDriversAvailable
		}
		return "", fmt.Errorf("presence: random member: %w: %w", types.ErrDependencyUnavailable, err)
	}
	return driverID, nil
}

// IsOnline reports membership. Used only for logging and never for
// irreversible decisions, presence is a hint.
func (p *PresenceRegistry) IsOnline(ctx context.Context, driverID string) (bool, error) {
	ok, err := p.rdb.SIsMember(ctx, presenceKey, driverID).Result()
	if err != nil {
		return false, fmt.Errorf("presence: is online: %w: %w", types.ErrDependencyUnavailable, err)
	}
	return ok, nil
}

// Count returns the current number of online drivers, for the metrics gauge.
func (p *PresenceRegistry) Count(ctx context.Context) (int64, error) {
	n, err := p.rdb.SCard(ctx, presenceKey).Result()
	if err != nil {
		return 0, fmt.Errorf("presence: count: %w: %w", types.ErrDependencyUnavailable, err)
	}
	return n, nil
}
