package config

import "time"

// PricingConfig selects the external sell-estimate sources, tried in order
type PricingConfig struct {
	Sources []string `mapstructure:"sources" validate:"min=1,dive,oneof=redis aggregate static"`

	// Expiration applied to prices written through the Redis source
	RedisExpiration time.Duration `mapstructure:"redis_expiration"`

	// Fixed estimates served by the static source
	Static []StaticPriceConfig `mapstructure:"static" validate:"dive"`
}

// StaticPriceConfig pins the sell estimate of one title
type StaticPriceConfig struct {
	Game  string `mapstructure:"game" validate:"required"`
	Title string `mapstructure:"title" validate:"required"`
	Price int64  `mapstructure:"price" validate:"gt=0"`
}

// RedisConfig holds the Redis connection used by the price source
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// NATSConfig holds the opportunity publisher configuration
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`

	// Subject prefix; results go to <subject>.<game>.<level>
	Subject string `mapstructure:"subject" validate:"required"`

	// JetStream stream capturing the subjects, created when missing
	Stream string `mapstructure:"stream" validate:"required"`
}
