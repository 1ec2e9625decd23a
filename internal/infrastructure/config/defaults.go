package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	setAPIDefaults(cfg)

	// Cache defaults
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1024
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 5 * time.Second
	}

	// Breaker defaults
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.Window == 0 {
		cfg.Breaker.Window = 60 * time.Second
	}
	if cfg.Breaker.OpenDuration == 0 {
		cfg.Breaker.OpenDuration = 30 * time.Second
	}

	setScannerDefaults(cfg)

	// Pricing defaults
	if len(cfg.Pricing.Sources) == 0 {
		cfg.Pricing.Sources = []string{"redis", "aggregate"}
	}
	if cfg.Pricing.RedisExpiration == 0 {
		cfg.Pricing.RedisExpiration = 10 * time.Minute
	}

	// Redis defaults
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	// NATS defaults
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "marketscan.opportunities"
	}
	if cfg.NATS.Stream == "" {
		cfg.NATS.Stream = "MARKETSCAN"
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "marketscan.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "marketscan"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "marketscan"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 10
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 2
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Daemon defaults
	if cfg.Daemon.HealthRefreshInterval == 0 {
		cfg.Daemon.HealthRefreshInterval = 5 * time.Second
	}
	if cfg.Daemon.LogTopN == 0 {
		cfg.Daemon.LogTopN = 5
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = "marketscan-daemon.pid"
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = 30 * time.Second
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Metrics defaults
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "localhost"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.PollInterval == 0 {
		cfg.Metrics.PollInterval = 10 * time.Second
	}
}

func setAPIDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.dmarket.com"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "marketscan-go"
	}

	limits := []struct {
		cfg   *RateLimitConfig
		rps   float64
		burst int
	}{
		{&cfg.API.RateLimits.MarketRead, 10, 10},
		{&cfg.API.RateLimits.PublicRead, 2, 4},
		{&cfg.API.RateLimits.OrderWrite, 1, 2},
	}
	for _, l := range limits {
		if l.cfg.RequestsPerSecond == 0 {
			l.cfg.RequestsPerSecond = l.rps
		}
		if l.cfg.Burst == 0 {
			l.cfg.Burst = l.burst
		}
	}

	if cfg.API.Retry.MaxAttempts == 0 {
		cfg.API.Retry.MaxAttempts = 5
	}
	if cfg.API.Retry.BackoffBase == 0 {
		cfg.API.Retry.BackoffBase = 1 * time.Second
	}
	if cfg.API.Retry.Multiplier == 0 {
		cfg.API.Retry.Multiplier = 2
	}
	if cfg.API.Retry.MaxBackoff == 0 {
		cfg.API.Retry.MaxBackoff = 30 * time.Second
	}
	if cfg.API.Retry.Jitter == 0 {
		cfg.API.Retry.Jitter = 0.5
	}
	if cfg.API.Retry.MaxElapsed == 0 {
		cfg.API.Retry.MaxElapsed = 2 * time.Minute
	}
	if cfg.API.Retry.MaxRetryAfter == 0 {
		cfg.API.Retry.MaxRetryAfter = time.Minute
	}

	if cfg.API.Penalty.Factor == 0 {
		cfg.API.Penalty.Factor = 0.5
	}
	if cfg.API.Penalty.RecoveryStep == 0 {
		cfg.API.Penalty.RecoveryStep = 1.1
	}
	if cfg.API.Penalty.MinFraction == 0 {
		cfg.API.Penalty.MinFraction = 0.1
	}
}

func setScannerDefaults(cfg *Config) {
	s := &cfg.Scanner
	if s.Concurrency == 0 {
		s.Concurrency = 4
	}
	if s.PricingConcurrency == 0 {
		s.PricingConcurrency = 8
	}
	if s.MaxFetchItems == 0 {
		s.MaxFetchItems = 1000
	}
	if s.SellFee == 0 {
		s.SellFee = 0.07
	}
	if s.MinInterval == 0 {
		s.MinInterval = 30 * time.Second
	}
	if s.MaxInterval == 0 {
		s.MaxInterval = 10 * time.Minute
	}
	if s.VolatilityWindow == 0 {
		s.VolatilityWindow = 10
	}
	if s.VolatilityLow == 0 {
		s.VolatilityLow = 0.01
	}
	if s.VolatilityHigh == 0 {
		s.VolatilityHigh = 0.10
	}
	if len(s.Requests) == 0 {
		s.Requests = []ScanRequestConfig{{Game: "csgo", Level: "boost", MaxItems: 20}}
	}
	for i := range s.Requests {
		if s.Requests[i].MaxItems == 0 {
			s.Requests[i].MaxItems = 20
		}
		if s.Requests[i].Paging == "" {
			s.Requests[i].Paging = "cursor"
		}
	}
}
