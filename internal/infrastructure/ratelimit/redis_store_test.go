package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

func newRedisLimiter(t *testing.T, max int, window time.Duration, clock *fakeClock) (*ratelimit.SlidingWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := ratelimit.NewRedisStore(client, "test", window)
	require.NoError(t, err)

	limiter, err := ratelimit.NewSlidingWindowLimiter(testRule(window, max), store, logger.NewNoopLogger(), ratelimit.WithClock(clock.Now))
	require.NoError(t, err)
	return limiter, s
}

func TestRedisStore_AdmitsUpToMax(t *testing.T) {
	clock := newFakeClock()
	limiter, s := newRedisLimiter(t, 3, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := limiter.CheckLimit(ctx, "ip:10.0.0.1")
		assert.True(t, result.Allowed)
		assert.Equal(t, 3-i-1, result.Remaining)
	}
	assert.False(t, limiter.CheckLimit(ctx, "ip:10.0.0.1").Allowed)

	members, err := s.ZMembers("ratelimit:test:ip:10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, members, 3, "rejected requests are not recorded")
	assert.Greater(t, s.TTL("ratelimit:test:ip:10.0.0.1"), time.Duration(0))
}

func TestRedisStore_AdmitsAgainAfterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter, _ := newRedisLimiter(t, 1, time.Minute, clock)
	ctx := context.Background()

	require.True(t, limiter.CheckLimit(ctx, "k").Allowed)
	require.False(t, limiter.CheckLimit(ctx, "k").Allowed)

	clock.Advance(time.Minute)
	assert.True(t, limiter.CheckLimit(ctx, "k").Allowed)
}

func TestRedisStore_RejectionAtBoundary(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	limiter, _ := newRedisLimiter(t, 3, 1000*time.Millisecond, clock)
	ctx := context.Background()

	var allowed []bool
	var last = limiter.CheckLimit(ctx, "k")
	allowed = append(allowed, last.Allowed)
	for i := 0; i < 3; i++ {
		clock.Advance(100 * time.Millisecond)
		last = limiter.CheckLimit(ctx, "k")
		allowed = append(allowed, last.Allowed)
	}

	assert.Equal(t, []bool{true, true, true, false}, allowed)
	assert.Equal(t, 0, last.Remaining)
	assert.True(t, last.ResetAt.Equal(start.Add(1000*time.Millisecond)))
}

func TestRedisStore_FailsOpenWhenUnavailable(t *testing.T) {
	clock := newFakeClock()
	limiter, s := newRedisLimiter(t, 1, time.Minute, clock)
	ctx := context.Background()

	s.Close()
	result := limiter.CheckLimit(ctx, "k")
	assert.True(t, result.Allowed)
	assert.Equal(t, 1000, result.Limit)
	assert.Equal(t, 999, result.Remaining)
}

func TestRedisStore_HitErrorKind(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	defer client.Close()

	store, err := ratelimit.NewRedisStore(client, "test", time.Minute)
	require.NoError(t, err)

	s.SetError("LOADING")
	_, err = store.Hit(context.Background(), "k", time.Now(), 1)
	assert.True(t, errors.IsLimiterInternal(err))
}

func TestRedisStore_Reset(t *testing.T) {
	clock := newFakeClock()
	limiter, s := newRedisLimiter(t, 1, time.Minute, clock)
	ctx := context.Background()

	require.True(t, limiter.CheckLimit(ctx, "k").Allowed)
	require.NoError(t, limiter.Reset(ctx, "k"))
	assert.False(t, s.Exists("ratelimit:test:k"))
	assert.True(t, limiter.CheckLimit(ctx, "k").Allowed)
}

func TestNewRedisStore_RequiresClient(t *testing.T) {
	_, err := ratelimit.NewRedisStore(nil, "test", time.Minute)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
