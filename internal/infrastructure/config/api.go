package config

import "time"

// APIConfig holds marketplace API client configuration
type APIConfig struct {
	// Base URL for the marketplace API
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// Per-attempt request timeout
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`

	UserAgent string `mapstructure:"user_agent"`

	// Token buckets, one per endpoint class
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`

	// Retry configuration
	Retry RetryConfig `mapstructure:"retry"`

	// Reaction of the rate limiter to 429 responses
	Penalty PenaltyConfig `mapstructure:"penalty"`
}

// RateLimitsConfig holds one bucket per endpoint class
type RateLimitsConfig struct {
	MarketRead RateLimitConfig `mapstructure:"market_read"`
	PublicRead RateLimitConfig `mapstructure:"public_read"`
	OrderWrite RateLimitConfig `mapstructure:"order_write"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Sustained requests per second
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`

	// Burst size for token bucket
	Burst int `mapstructure:"burst" validate:"min=1"`
}

// RetryConfig holds retry configuration for failed requests
type RetryConfig struct {
	// Total attempts including the first one
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`

	// Base duration for exponential backoff
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"required"`

	Multiplier float64       `mapstructure:"multiplier" validate:"gte=1"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`

	// Fraction of the delay added as random jitter
	Jitter float64 `mapstructure:"jitter" validate:"gte=0,lte=1"`

	// Total time budget across all attempts of one request
	MaxElapsed time.Duration `mapstructure:"max_elapsed"`

	// Largest Retry-After the client will honour
	MaxRetryAfter time.Duration `mapstructure:"max_retry_after"`
}

// PenaltyConfig shapes the adaptive rate reduction after a 429
type PenaltyConfig struct {
	Factor       float64 `mapstructure:"factor" validate:"gt=0,lt=1"`
	RecoveryStep float64 `mapstructure:"recovery_step" validate:"gt=1"`
	MinFraction  float64 `mapstructure:"min_fraction" validate:"gt=0,lte=1"`
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries" validate:"min=1"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// BreakerConfig holds per-class circuit breaker configuration
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"min=1"`
	Window           time.Duration `mapstructure:"window" validate:"required"`
	OpenDuration     time.Duration `mapstructure:"open_duration" validate:"required"`
}
