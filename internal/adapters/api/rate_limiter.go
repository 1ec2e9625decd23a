package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketConfig sizes the token bucket for one endpoint class
type BucketConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// PenaltyConfig controls how the effective rate reacts to upstream 429 responses.
// Factor shrinks the rate on each 429, RecoveryStep grows it back on success,
// and MinFraction is the floor relative to the configured rate.
type PenaltyConfig struct {
	Factor       float64
	RecoveryStep float64
	MinFraction  float64
}

// DefaultBucketConfigs returns the quotas used when nothing is configured.
// Authorized reads get the larger budget; writes are kept conservative.
func DefaultBucketConfigs() map[EndpointClass]BucketConfig {
	return map[EndpointClass]BucketConfig{
		ClassMarketRead: {RequestsPerSecond: 10, Burst: 10},
		ClassPublicRead: {RequestsPerSecond: 2, Burst: 4},
		ClassOrderWrite: {RequestsPerSecond: 1, Burst: 2},
	}
}

// DefaultPenaltyConfig halves the rate per 429 and recovers 10% per success
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfig{Factor: 0.5, RecoveryStep: 1.1, MinFraction: 0.1}
}

// BucketSnapshot is a point-in-time view of one bucket
type BucketSnapshot struct {
	Class         EndpointClass
	Tokens        float64
	MaxTokens     int
	RefillPerSec  float64
	EffectiveRate float64
}

type bucket struct {
	limiter  *rate.Limiter
	mu       sync.Mutex // serializes penalize/recover read-modify-write
	baseRate rate.Limit
	burst    int
}

// RateLimiter holds one token bucket per endpoint class.
// Unknown classes share the public-read bucket, the most conservative quota.
type RateLimiter struct {
	buckets map[EndpointClass]*bucket
	penalty PenaltyConfig
}

// NewRateLimiter creates buckets for every configured class. Missing known
// classes are filled from DefaultBucketConfigs.
func NewRateLimiter(configs map[EndpointClass]BucketConfig, penalty PenaltyConfig) *RateLimiter {
	merged := DefaultBucketConfigs()
	for class, cfg := range configs {
		merged[class] = cfg
	}
	if penalty.Factor <= 0 || penalty.Factor >= 1 {
		penalty.Factor = DefaultPenaltyConfig().Factor
	}
	if penalty.RecoveryStep <= 1 {
		penalty.RecoveryStep = DefaultPenaltyConfig().RecoveryStep
	}
	if penalty.MinFraction <= 0 || penalty.MinFraction > 1 {
		penalty.MinFraction = DefaultPenaltyConfig().MinFraction
	}

	rl := &RateLimiter{
		buckets: make(map[EndpointClass]*bucket, len(merged)),
		penalty: penalty,
	}
	for class, cfg := range merged {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limit := rate.Limit(cfg.RequestsPerSecond)
		rl.buckets[class] = &bucket{
			limiter:  rate.NewLimiter(limit, burst),
			baseRate: limit,
			burst:    burst,
		}
	}
	return rl
}

func (r *RateLimiter) bucketFor(class EndpointClass) *bucket {
	if b, ok := r.buckets[class]; ok {
		return b
	}
	return r.buckets[ClassPublicRead]
}

// Acquire blocks until a token for class is available or ctx is done.
// Tokens are granted in arrival order per class.
func (r *RateLimiter) Acquire(ctx context.Context, class EndpointClass) error {
	if err := r.bucketFor(class).limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Wait refuses upfront when the deadline cannot be met
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// TryAcquireAt takes a token at the given instant without blocking
func (r *RateLimiter) TryAcquireAt(class EndpointClass, now time.Time) bool {
	return r.bucketFor(class).limiter.AllowN(now, 1)
}

// Penalize shrinks the effective rate for class after an upstream 429.
// Returns the new effective rate.
func (r *RateLimiter) Penalize(class EndpointClass) float64 {
	b := r.bucketFor(class)
	b.mu.Lock()
	defer b.mu.Unlock()

	floor := b.baseRate * rate.Limit(r.penalty.MinFraction)
	next := b.limiter.Limit() * rate.Limit(r.penalty.Factor)
	if next < floor {
		next = floor
	}
	b.limiter.SetLimit(next)
	return float64(next)
}

// Recover grows a penalized rate back toward the configured rate.
// Returns the new effective rate.
func (r *RateLimiter) Recover(class EndpointClass) float64 {
	b := r.bucketFor(class)
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.limiter.Limit()
	if current >= b.baseRate {
		return float64(current)
	}
	next := current * rate.Limit(r.penalty.RecoveryStep)
	if next > b.baseRate {
		next = b.baseRate
	}
	b.limiter.SetLimit(next)
	return float64(next)
}

// Snapshot reports the bucket state for class
func (r *RateLimiter) Snapshot(class EndpointClass) BucketSnapshot {
	b := r.bucketFor(class)
	return BucketSnapshot{
		Class:         class,
		Tokens:        b.limiter.Tokens(),
		MaxTokens:     b.burst,
		RefillPerSec:  float64(b.baseRate),
		EffectiveRate: float64(b.limiter.Limit()),
	}
}

// Snapshots reports every configured bucket
func (r *RateLimiter) Snapshots() map[EndpointClass]BucketSnapshot {
	out := make(map[EndpointClass]BucketSnapshot, len(r.buckets))
	for class := range r.buckets {
		out[class] = r.Snapshot(class)
	}
	return out
}
