package pricing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// KeyPrefix namespaces price hashes in Redis
const KeyPrefix = "prices"

// RedisSource reads sell estimates that an external collector writes into Redis.
//
// Layout: one hash per title at prices:<gameId>:<title>, field = platform name,
// value = price in minor units. The best (highest) platform price is the estimate.
type RedisSource struct {
	rdb        *redis.Client
	expiration time.Duration
	logger     *zap.Logger
}

// NewRedisSource wraps an already connected client. expiration applies to Put only.
func NewRedisSource(rdb *redis.Client, expiration time.Duration, logger *zap.Logger) *RedisSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSource{rdb: rdb, expiration: expiration, logger: logger}
}

func (r *RedisSource) Name() string { return "redis" }

// Key builds the hash key for a title
func Key(game market.Game, title string) (string, error) {
	wire, err := game.WireID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, wire, title), nil
}

// LookupSellEstimate returns the highest platform price stored for the title
func (r *RedisSource) LookupSellEstimate(ctx context.Context, title string, game market.Game) (int64, bool, error) {
	key, err := Key(game, title)
	if err != nil {
		return 0, false, err
	}

	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis hgetall %s: %w", key, err)
	}

	var best int64
	for platform, raw := range fields {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			r.logger.Debug("ignoring malformed price", zap.String("key", key), zap.String("platform", platform))
			continue
		}
		best = max(best, price)
	}
	return best, best > 0, nil
}

// Put stores one platform price for a title and refreshes the key's expiration
func (r *RedisSource) Put(ctx context.Context, game market.Game, title, platform string, priceMinorUnits int64) error {
	key, err := Key(game, title)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, platform, priceMinorUnits)
	if r.expiration > 0 {
		pipe.Expire(ctx, key, r.expiration)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}
