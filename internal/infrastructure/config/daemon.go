package config

import "time"

// DaemonConfig holds scan daemon configuration
type DaemonConfig struct {
	// gRPC health server address (host:port), empty disables it
	HealthAddress string `mapstructure:"health_address"`

	// How often breaker states are pushed into the health server
	HealthRefreshInterval time.Duration `mapstructure:"health_refresh_interval" validate:"required"`

	// Stop after this many cycles, 0 = run until signalled
	MaxCycles int `mapstructure:"max_cycles" validate:"min=0"`

	// Opportunities printed per result by the log sink
	LogTopN int `mapstructure:"log_top_n" validate:"min=0"`

	// PID file guarding against a second daemon on the same host
	PIDFile string `mapstructure:"pid_file"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}
