package config

import (
	"fmt"
	"time"
)

// SQLiteMemory is the path that keeps the journal in process memory
const SQLiteMemory = ":memory:"

// DatabaseConfig locates the scan journal, where every run and the
// opportunities it surfaced are recorded for later inspection.
type DatabaseConfig struct {
	// Off by default: scans then only reach the log, Redis and NATS sinks
	Enabled bool `mapstructure:"enabled"`

	// Journal backend, "sqlite" for a single host or "postgres" when several daemons share history
	Type string `mapstructure:"type" validate:"required,oneof=postgres sqlite"`

	// Postgres DSN for the journal, overrides the discrete fields below.
	// DATABASE_URL in the environment overrides this in turn.
	URL string `mapstructure:"url"`

	// Discrete Postgres settings, used only when URL is empty
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	// Journal file for sqlite; empty keeps the journal in memory for the life of the process
	Path string `mapstructure:"path"`

	// Postgres only, sqlite journals are written through one connection
	Pool PoolConfig `mapstructure:"pool"`
}

// PoolConfig bounds the connections the journal writer holds open
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open" validate:"min=1"`
	MaxIdle     int           `mapstructure:"max_idle" validate:"min=1"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// InMemory reports whether the journal is discarded when the process exits
func (c DatabaseConfig) InMemory() bool {
	return c.Type == "sqlite" && (c.Path == "" || c.Path == SQLiteMemory)
}

// DSN is the connection string handed to the journal's gorm dialector
func (c DatabaseConfig) DSN() string {
	switch c.Type {
	case "postgres":
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	case "sqlite":
		if c.Path == "" {
			return SQLiteMemory
		}
		return c.Path
	}
	return ""
}
