package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
)

func TestRateLimiter_NeverExceedsBurstPlusRefill(t *testing.T) {
	// Arrange
	rl := api.NewRateLimiter(map[api.EndpointClass]api.BucketConfig{
		api.ClassMarketRead: {RequestsPerSecond: 2, Burst: 5},
	}, api.PenaltyConfig{})
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Act: hammer the bucket every 10ms for 3s of synthetic time
	granted := 0
	for ms := 0; ms <= 3000; ms += 10 {
		if rl.TryAcquireAt(api.ClassMarketRead, start.Add(time.Duration(ms)*time.Millisecond)) {
			granted++
		}
	}

	// Assert: burst (5) + rate (2/s) * 3s
	assert.LessOrEqual(t, granted, 11)
	assert.GreaterOrEqual(t, granted, 10)
}

func TestRateLimiter_ClassesAreIndependent(t *testing.T) {
	rl := api.NewRateLimiter(map[api.EndpointClass]api.BucketConfig{
		api.ClassMarketRead: {RequestsPerSecond: 1, Burst: 1},
		api.ClassPublicRead: {RequestsPerSecond: 1, Burst: 1},
	}, api.PenaltyConfig{})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, rl.TryAcquireAt(api.ClassMarketRead, now))
	assert.False(t, rl.TryAcquireAt(api.ClassMarketRead, now))
	assert.True(t, rl.TryAcquireAt(api.ClassPublicRead, now), "public bucket must not be drained by market reads")
}

func TestRateLimiter_PenalizeAndRecover(t *testing.T) {
	// Arrange
	rl := api.NewRateLimiter(map[api.EndpointClass]api.BucketConfig{
		api.ClassMarketRead: {RequestsPerSecond: 10, Burst: 10},
	}, api.PenaltyConfig{Factor: 0.5, RecoveryStep: 2, MinFraction: 0.2})

	// Act & Assert
	assert.InDelta(t, 5.0, rl.Penalize(api.ClassMarketRead), 1e-9)
	assert.InDelta(t, 2.5, rl.Penalize(api.ClassMarketRead), 1e-9)
	assert.InDelta(t, 2.0, rl.Penalize(api.ClassMarketRead), 1e-9, "floored at MinFraction of base")

	assert.InDelta(t, 4.0, rl.Recover(api.ClassMarketRead), 1e-9)
	assert.InDelta(t, 8.0, rl.Recover(api.ClassMarketRead), 1e-9)
	assert.InDelta(t, 10.0, rl.Recover(api.ClassMarketRead), 1e-9, "never above the configured rate")

	snap := rl.Snapshot(api.ClassMarketRead)
	assert.Equal(t, 10, snap.MaxTokens)
	assert.InDelta(t, 10.0, snap.EffectiveRate, 1e-9)
}

func TestRateLimiter_AcquireHonorsCancellation(t *testing.T) {
	rl := api.NewRateLimiter(map[api.EndpointClass]api.BucketConfig{
		api.ClassOrderWrite: {RequestsPerSecond: 0.01, Burst: 1},
	}, api.PenaltyConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, rl.Acquire(ctx, api.ClassOrderWrite))
	cancel()

	err := rl.Acquire(ctx, api.ClassOrderWrite)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiter_AcquireFailsFastWhenDeadlineTooShort(t *testing.T) {
	rl := api.NewRateLimiter(map[api.EndpointClass]api.BucketConfig{
		api.ClassOrderWrite: {RequestsPerSecond: 0.01, Burst: 1},
	}, api.PenaltyConfig{})
	require.NoError(t, rl.Acquire(context.Background(), api.ClassOrderWrite))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Acquire(ctx, api.ClassOrderWrite)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
