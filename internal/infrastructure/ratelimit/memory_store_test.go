package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/throttle/internal/domain/service/mocks"
	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
)

func TestMemoryStore_Hit(t *testing.T) {
	store := ratelimit.NewMemoryStore("test", time.Second, ratelimit.WithSweepInterval(0))
	defer store.Close()
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	state, err := store.Hit(ctx, "k", t0, 2)
	require.NoError(t, err)
	assert.True(t, state.Admitted)
	assert.Equal(t, 0, state.Count)
	assert.Equal(t, t0, state.Oldest)

	state, err = store.Hit(ctx, "k", t0.Add(500*time.Millisecond), 2)
	require.NoError(t, err)
	assert.True(t, state.Admitted)
	assert.Equal(t, 1, state.Count)

	state, err = store.Hit(ctx, "k", t0.Add(900*time.Millisecond), 2)
	require.NoError(t, err)
	assert.False(t, state.Admitted)
	assert.Equal(t, 2, state.Count)
	assert.Equal(t, t0, state.Oldest)

	// A timestamp exactly one window old is out of the window.
	state, err = store.Hit(ctx, "k", t0.Add(time.Second), 2)
	require.NoError(t, err)
	assert.True(t, state.Admitted)
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, t0.Add(500*time.Millisecond), state.Oldest)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := ratelimit.NewMemoryStore("test", time.Minute, ratelimit.WithSweepInterval(0))
	defer store.Close()
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	_, _ = store.Hit(ctx, "old", t0, 10)
	_, _ = store.Hit(ctx, "mixed", t0, 10)
	_, _ = store.Hit(ctx, "mixed", t0.Add(30*time.Second), 10)
	_, _ = store.Hit(ctx, "fresh", t0.Add(50*time.Second), 10)
	require.Equal(t, 3, store.Len())

	assert.Equal(t, 0, store.Sweep(t0.Add(30*time.Second)))
	assert.Equal(t, 1, store.Sweep(t0.Add(time.Minute)), "only keys with no timestamp in the window are removed")
	assert.Equal(t, 2, store.Len())

	assert.Equal(t, 2, store.Sweep(t0.Add(2*time.Minute)))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_SweeperRunsOnInterval(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return t0.Add(time.Hour) }

	metrics := new(mocks.MockRateLimitMetrics)
	metrics.On("RecordSweep", "test", mock.Anything, mock.Anything, mock.Anything).Return()

	store := ratelimit.NewMemoryStore("test", time.Minute,
		ratelimit.WithSweepInterval(10*time.Millisecond),
		ratelimit.WithSweepClock(clock),
		ratelimit.WithStoreMetrics(metrics),
	)
	_, _ = store.Hit(context.Background(), "k", t0, 1)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "close is idempotent")
	metrics.AssertCalled(t, "RecordSweep", "test", 1, 0, mock.Anything)
}

func TestMemoryStore_Reset(t *testing.T) {
	store := ratelimit.NewMemoryStore("test", time.Minute, ratelimit.WithSweepInterval(0))
	defer store.Close()
	ctx := context.Background()
	now := time.Now()

	_, _ = store.Hit(ctx, "k", now, 1)
	state, _ := store.Hit(ctx, "k", now, 1)
	require.False(t, state.Admitted)

	require.NoError(t, store.Reset(ctx, "k"))
	state, _ = store.Hit(ctx, "k", now, 1)
	assert.True(t, state.Admitted)
}
