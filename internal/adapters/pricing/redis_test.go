package pricing_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/pricing"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// newTestRedis connects to MS_TEST_REDIS_ADDR (default localhost:6379) or skips
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("MS_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisSource_BestPlatformWins(t *testing.T) {
	// Arrange
	rdb := newTestRedis(t)
	ctx := context.Background()
	src := pricing.NewRedisSource(rdb, time.Minute, nil)
	title := "Karambit | Doppler " + time.Now().Format(time.RFC3339Nano)
	key, err := pricing.Key(market.GameCSGO, title)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	require.NoError(t, src.Put(ctx, market.GameCSGO, title, "steam", 9100))
	require.NoError(t, src.Put(ctx, market.GameCSGO, title, "buff", 8700))
	require.NoError(t, rdb.HSet(ctx, key, "broken", "n/a").Err())

	// Act
	price, ok, err := src.LookupSellEstimate(ctx, title, market.GameCSGO)

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(9100), price)

	ttl, err := rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestRedisSource_MissingKey(t *testing.T) {
	rdb := newTestRedis(t)
	src := pricing.NewRedisSource(rdb, 0, nil)

	_, ok, err := src.LookupSellEstimate(context.Background(), "no such title", market.GameRust)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey_Layout(t *testing.T) {
	key, err := pricing.Key(market.GameDota2, "Arcana")
	require.NoError(t, err)
	assert.Equal(t, "prices:9a92:Arcana", key)

	_, err = pricing.Key("minecraft", "x")
	assert.ErrorIs(t, err, market.ErrUnknownGame)
}
