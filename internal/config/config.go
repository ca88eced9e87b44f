// Package config loads recordqa settings from environment variables with
// defaults, and validates them on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Merge      MergeConfig
	Validation ValidationConfig
	Jobs       JobsConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining running jobs.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for synchronous requests.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxBodyBytes caps JSON request bodies (default: 10MB)
	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" default:"10485760"`
}

// DatabaseConfig holds PostgreSQL settings. An empty URL selects the
// in-memory record store.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// MergeConfig holds reconciliation settings.
type MergeConfig struct {
	// ExemptKeys are bookkeeping fields stripped from every survivor,
	// in addition to the fields a blueprint marks merge-exempt.
	ExemptKeys []string `env:"MERGE_EXEMPT_KEYS" default:"updatedAt"`

	// PageSize is the number of records fetched per store call.
	PageSize int `env:"MERGE_PAGE_SIZE" default:"1000"`
}

// ValidationConfig holds sheet validation settings.
type ValidationConfig struct {
	// Workers bounds how many records are validated concurrently.
	Workers int `env:"VALIDATION_WORKERS" default:"4"`

	// BlueprintDir is an optional directory of YAML blueprints loaded at startup.
	BlueprintDir string `env:"BLUEPRINT_DIR"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	MaxConcurrent int           `env:"JOBS_MAX_CONCURRENT" default:"5"`
	MaxWaitTime   time.Duration `env:"JOBS_MAX_WAIT_TIME" default:"30s"`
	Timeout       time.Duration `env:"JOBS_TIMEOUT" default:"10m"`

	// Retention is how long finished jobs stay queryable.
	Retention time.Duration `env:"JOBS_RETENTION" default:"15m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// JobLimit is requests per minute for job endpoints.
	JobLimit int `env:"RATE_LIMIT_JOBS" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// UsesDatabase reports whether a PostgreSQL URL is configured.
func (c *DatabaseConfig) UsesDatabase() bool {
	return c.URL != ""
}
