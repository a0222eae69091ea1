package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "rtv"

// Missing keys return false, which Redis turns into a nil reply.
const incrementIfExistsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return false
end
return redis.call("INCR", KEYS[1])
`

var incrementIfExistsLua = redis.NewScript(incrementIfExistsScript)

var (
	_ VersionStore = (*RedisStore)(nil)
	_ Provisioner  = (*RedisStore)(nil)
)

// RedisStore keeps one integer key per user.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. An empty prefix defaults to "rtv".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// CreateVersion provisions the record at [InitialVersion].
func (s *RedisStore) CreateVersion(ctx context.Context, userID string) (int64, error) {
	created, err := s.redis.SetNX(ctx, s.key(userID), InitialVersion, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !created {
		return 0, ErrVersionExists
	}
	return InitialVersion, nil
}

// GetVersion returns the stored version or [ErrVersionNotFound].
func (s *RedisStore) GetVersion(ctx context.Context, userID string) (int64, error) {
	raw, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrVersionNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt refresh token version for %q: %w", userID, err)
	}
	return version, nil
}

// IncrementVersion runs EXISTS and INCR inside one script so concurrent
// callers never lose an update and a missing record is never created.
func (s *RedisStore) IncrementVersion(ctx context.Context, userID string) (int64, error) {
	version, err := incrementIfExistsLua.Run(ctx, s.redis, []string{s.key(userID)}).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrVersionNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return version, nil
}

// DeleteVersion removes the record. Deleting a missing record is not an error.
func (s *RedisStore) DeleteVersion(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
