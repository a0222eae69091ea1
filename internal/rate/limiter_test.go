package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.CheckLogin(ctx, "a@x.com", ""))
		require.NoError(t, l.RecordFailure(ctx, "a@x.com", ""))
	}
	assert.ErrorIs(t, l.CheckLogin(ctx, "a@x.com", ""), ErrRateLimited)
	assert.NoError(t, l.CheckLogin(ctx, "b@x.com", ""), "other emails are unaffected")

	n, err := l.Attempts(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldown: time.Minute})
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "a@x.com", ""))
	require.ErrorIs(t, l.CheckLogin(ctx, "a@x.com", ""), ErrRateLimited)

	mr.FastForward(61 * time.Second)
	assert.NoError(t, l.CheckLogin(ctx, "a@x.com", ""))
}

func TestLimiterResetClearsEmailOnly(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "a@x.com", "10.0.0.1"))
	require.NoError(t, l.Reset(ctx, "a@x.com"))

	assert.NoError(t, l.CheckLogin(ctx, "a@x.com", ""))
	assert.ErrorIs(t, l.CheckLogin(ctx, "c@x.com", "10.0.0.1"), ErrRateLimited)
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldown: time.Minute})
	mr.Close()

	err := l.CheckLogin(context.Background(), "a@x.com", "")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}
