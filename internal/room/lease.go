package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseLost is returned by Leaser.Renew when another instance holds the
// room.
var ErrLeaseLost = errors.New("room lease lost")

// Leaser arbitrates which instance owns a room. Only the owner dispatches
// actions and runs timers; other instances keep a passive copy.
type Leaser interface {
	// Acquire takes the room if it is free and reports whether this instance
	// now holds it. Acquiring a room already held by this instance succeeds.
	Acquire(ctx context.Context, room string) (bool, error)
	Renew(ctx context.Context, room string) error
	Release(ctx context.Context, room string) error
}

const leasePrefix = "buzzboard:lease:"

var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLeaser keeps room leases as expiring Redis keys holding the owning
// instance's ID. Leases must be renewed within ttl.
type RedisLeaser struct {
	rdb      *redis.Client
	instance string
	ttl      time.Duration
}

func NewRedisLeaser(rdb *redis.Client, ttl time.Duration) *RedisLeaser {
	return &RedisLeaser{rdb: rdb, instance: uuid.NewString(), ttl: ttl}
}

func (l *RedisLeaser) Acquire(ctx context.Context, room string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, leasePrefix+room, l.instance, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lease: %w", err)
	}
	if ok {
		return true, nil
	}
	switch err := l.Renew(ctx, room); {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrLeaseLost):
		return false, nil
	default:
		return false, err
	}
}

func (l *RedisLeaser) Renew(ctx context.Context, room string) error {
	n, err := renewScript.Run(ctx, l.rdb, []string{leasePrefix + room}, l.instance, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("renewing lease: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (l *RedisLeaser) Release(ctx context.Context, room string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{leasePrefix + room}, l.instance).Err(); err != nil {
		return fmt.Errorf("releasing lease: %w", err)
	}
	return nil
}
