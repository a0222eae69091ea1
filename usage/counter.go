package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimitExceeded is returned by Consume when the user has no calls left.
	ErrLimitExceeded = errors.New("api call limit exceeded")
	// ErrEntryNotFound is returned when the user has no usage entry.
	ErrEntryNotFound = errors.New("api usage entry not found")
	// ErrEntryExists is returned by Create for an already provisioned user.
	ErrEntryExists = errors.New("api usage entry already exists")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	defaultPrefix = "apiu"

	consumeMissing  int64 = -1
	consumeExceeded int64 = -2
)

const consumeScript = `
local used = redis.call("GET", KEYS[1])
if not used then
  return -1
end
if tonumber(used) >= tonumber(ARGV[1]) then
  return -2
end
return redis.call("INCR", KEYS[1])
`

var consumeLua = redis.NewScript(consumeScript)

// Counter stores one integer per user.
type Counter struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCounter creates a [Counter]. An empty prefix defaults to "apiu".
func NewCounter(client redis.UniversalClient, prefix string) *Counter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Counter{redis: client, prefix: prefix}
}

func (c *Counter) key(userID string) string {
	return c.prefix + ":" + userID
}

// Create provisions a zeroed entry.
func (c *Counter) Create(ctx context.Context, userID string) error {
	created, err := c.redis.SetNX(ctx, c.key(userID), 0, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !created {
		return ErrEntryExists
	}
	return nil
}

// Used returns the number of calls made so far.
func (c *Counter) Used(ctx context.Context, userID string) (int64, error) {
	raw, err := c.redis.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrEntryNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	used, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt api usage entry for %q: %w", userID, err)
	}
	return used, nil
}

// Consume records one call if fewer than limit calls were made and returns
// the new total.
func (c *Counter) Consume(ctx context.Context, userID string, limit int) (int64, error) {
	if limit <= 0 {
		return 0, ErrLimitExceeded
	}
	res, err := consumeLua.Run(ctx, c.redis, []string{c.key(userID)}, limit).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch res {
	case consumeMissing:
		return 0, ErrEntryNotFound
	case consumeExceeded:
		return 0, ErrLimitExceeded
	}
	return res, nil
}

// Delete removes the entry. Deleting a missing entry is not an error.
func (c *Counter) Delete(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
