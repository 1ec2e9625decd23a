package setup

import (
	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/config"
)

// ClientConfig maps the api, cache and breaker sections onto the client's config
func ClientConfig(cfg *config.Config) api.Config {
	retry := cfg.API.Retry
	limits := cfg.API.RateLimits
	return api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Retry: api.RetryPolicy{
			MaxAttempts:   retry.MaxAttempts,
			BaseDelay:     retry.BackoffBase,
			Multiplier:    retry.Multiplier,
			MaxDelay:      retry.MaxBackoff,
			Jitter:        retry.Jitter,
			MaxElapsed:    retry.MaxElapsed,
			MaxRetryAfter: retry.MaxRetryAfter,
		},
		RateLimits: map[api.EndpointClass]api.BucketConfig{
			api.ClassMarketRead: bucket(limits.MarketRead),
			api.ClassPublicRead: bucket(limits.PublicRead),
			api.ClassOrderWrite: bucket(limits.OrderWrite),
		},
		Penalty: api.PenaltyConfig{
			Factor:       cfg.API.Penalty.Factor,
			RecoveryStep: cfg.API.Penalty.RecoveryStep,
			MinFraction:  cfg.API.Penalty.MinFraction,
		},
		Breaker: api.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Window:           cfg.Breaker.Window,
			OpenDuration:     cfg.Breaker.OpenDuration,
		},
		Cache: api.CacheConfig{
			MaxEntries: cfg.Cache.MaxEntries,
			DefaultTTL: cfg.Cache.DefaultTTL,
		},
	}
}

func bucket(rl config.RateLimitConfig) api.BucketConfig {
	return api.BucketConfig{RequestsPerSecond: rl.RequestsPerSecond, Burst: rl.Burst}
}

// ScannerConfig maps the scanner section onto scanning.Config
func ScannerConfig(cfg *config.Config) scanning.Config {
	s := cfg.Scanner
	return scanning.Config{
		Concurrency:        s.Concurrency,
		PricingConcurrency: s.PricingConcurrency,
		MaxFetchItems:      s.MaxFetchItems,
		Interval: scanning.IntervalConfig{
			Min:    s.MinInterval,
			Max:    s.MaxInterval,
			Low:    s.VolatilityLow,
			High:   s.VolatilityHigh,
			Window: s.VolatilityWindow,
		},
	}
}

// FeeSchedule builds the fee schedule from the scanner section
func FeeSchedule(cfg *config.Config) (trading.FeeSchedule, error) {
	return trading.NewFeeSchedule(cfg.Scanner.SellFee, cfg.Scanner.BuyFee)
}

// ScanRequests returns the configured daemon requests
func ScanRequests(cfg *config.Config) ([]market.ScanRequest, error) {
	return cfg.Scanner.ScanRequests()
}
