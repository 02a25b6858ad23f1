package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/accessgate/internal/model"
	"github.com/mcoot/accessgate/internal/storage"
)

// setIfNewer stores ARGV[1] at KEYS[1] only when it is greater than the current value
var setIfNewer = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Cooldown operations

func (s *Storage) GetLastGrant(ctx context.Context, id model.RemoteID) (time.Time, bool, error) {
	millis, err := s.client.Get(ctx, lastGrantKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(millis).UTC(), true, nil
}

// SetLastGrant records a grant time. The key expires after ttl so stale
// cooldowns do not accumulate.
func (s *Storage) SetLastGrant(ctx context.Context, id model.RemoteID, at time.Time, ttl time.Duration) error {
	return setIfNewer.Run(ctx, s.client, []string{lastGrantKey(id)}, at.UnixMilli(), ttl.Milliseconds()).Err()
}

// Pending playtime operations

func (s *Storage) GetPendingMinutes(ctx context.Context, id model.RemoteID) (int, error) {
	minutes, err := s.client.Get(ctx, pendingMinutesKey(id)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return minutes, err
}

func (s *Storage) SavePendingMinutes(ctx context.Context, id model.RemoteID, minutes int) error {
	if minutes <= 0 {
		return s.ClearPendingMinutes(ctx, id)
	}
	return s.client.Set(ctx, pendingMinutesKey(id), minutes, s.cfg.PendingPlaytimeTTL).Err()
}

func (s *Storage) ClearPendingMinutes(ctx context.Context, id model.RemoteID) error {
	return s.client.Del(ctx, pendingMinutesKey(id)).Err()
}
