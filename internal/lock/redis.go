package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 10 * time.Second
	pollInterval = 25 * time.Millisecond
	keyPrefix    = "reservations:room-lock:"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis holds room leases in a shared Redis so several service instances
// serialise on the same room.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

var _ RoomLocker = (*Redis)(nil)

// NewRedis builds a lease based locker. A non-positive ttl falls back to ten
// seconds. Leases are not renewed, so ttl must outlast the longest locked transaction.
func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Lock polls SET NX PX until the lease is won or ctx is done.
func (r *Redis) Lock(ctx context.Context, roomID string) (Unlock, error) {
	key := keyPrefix + roomID
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("lock: acquire %s: %w", roomID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	return r.releaser(key, roomID, token), nil
}

// releaser deletes the lease at most once, however many callers release it.
func (r *Redis) releaser(key, roomID, token string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled by the time we release.
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn("failed to release room lock", "room_id", roomID, "error", err)
			}
		})
	}
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
