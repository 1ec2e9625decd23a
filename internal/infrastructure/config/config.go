package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andrescamacho/marketscan-go/internal/adapters/credentials"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Scanner     ScannerConfig     `mapstructure:"scanner"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Daemon      DaemonConfig      `mapstructure:"daemon"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// CredentialsConfig holds the marketplace key pair.
// The secret is a credentials.Secret so it never renders in logs or config dumps.
type CredentialsConfig struct {
	PublicKey string             `mapstructure:"public_key"`
	SecretKey credentials.Secret `mapstructure:"secret_key"`
}

// Environment variables read without the MS_ prefix
const (
	EnvPublicKey   = "MARKETSCAN_PUBLIC_KEY"
	EnvSecretKey   = "MARKETSCAN_SECRET_KEY"
	EnvDatabaseURL = "DATABASE_URL"
)

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/marketscan")
	}

	v.SetEnvPrefix("MS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we'll use env vars and defaults
	}

	if dbURL := os.Getenv(EnvDatabaseURL); dbURL != "" {
		v.Set("database.url", dbURL)
	}
	if key := os.Getenv(EnvPublicKey); key != "" && !v.IsSet("credentials.public_key") {
		v.Set("credentials.public_key", key)
	}
	if key := os.Getenv(EnvSecretKey); key != "" && !v.IsSet("credentials.secret_key") {
		v.Set("credentials.secret_key", key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// bindEnvKeys registers keys that have no config-file value so AutomaticEnv can see them
// during Unmarshal. Viper only consults the environment for keys it already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"api.base_url", "api.timeout", "api.user_agent",
		"api.retry.max_attempts", "api.retry.backoff_base", "api.retry.max_elapsed",
		"credentials.public_key", "credentials.secret_key",
		"cache.max_entries", "cache.default_ttl",
		"breaker.failure_threshold", "breaker.window", "breaker.open_duration",
		"scanner.concurrency", "scanner.pricing_concurrency", "scanner.max_fetch_items",
		"scanner.sell_fee", "scanner.buy_fee", "scanner.min_interval", "scanner.max_interval",
		"pricing.sources",
		"redis.enabled", "redis.addr", "redis.password", "redis.db",
		"nats.enabled", "nats.url", "nats.subject", "nats.stream",
		"database.enabled", "database.type", "database.url", "database.path",
		"daemon.health_address", "daemon.max_cycles",
		"logging.level", "logging.format", "logging.output", "logging.file_path",
		"metrics.enabled", "metrics.host", "metrics.port", "metrics.path",
	} {
		_ = v.BindEnv(key)
	}
}

// LoadConfigOrDefault loads configuration or returns a default config on error
func LoadConfigOrDefault(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}

// MustLoadConfig loads configuration and panics on error (for use in main.go)
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
