// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
//
// The ERP-side location tables are not environment driven; they live in a
// YAML file loaded by [LoadLocations].
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	ERP      ERPConfig
	Transfer TransferConfig
	Upload   UploadConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, runs can be long)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 15m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"15m"`
}

// ERPConfig holds the Odoo connection settings.
type ERPConfig struct {
	// URL is the Odoo base URL, e.g. https://erp.example.com (required)
	URL string `env:"ODOO_URL" required:"true"`

	// Database is the Odoo database name (required)
	Database string `env:"ODOO_DB" required:"true"`

	// Username is the login used for every remote call (required)
	Username string `env:"ODOO_USERNAME" envAlt:"ODOO_USER" required:"true"`

	// Password is the password or API key for Username; ODOO_PASSWORD_FILE
	// may name a file holding it instead (required)
	Password string `env:"ODOO_PASSWORD" secret:"true" required:"true"`

	// Timeout bounds a single remote call (default: 30s)
	Timeout time.Duration `env:"ODOO_TIMEOUT" default:"30s"`
}

// TransferConfig holds settings for file interpretation and transfer creation.
type TransferConfig struct {
	// LocationsFile is the YAML file with location, picking type and alias tables
	LocationsFile string `env:"LOCATIONS_FILE" default:"locations.yaml"`

	// SourceLocation overrides the source key of the locations file (default: BODEGA)
	SourceLocation string `env:"TRANSFER_SOURCE_LOCATION"`

	// Encoding is the character encoding of uploaded files: latin1, windows-1252 or utf-8
	Encoding string `env:"FILE_ENCODING" default:"latin1"`
}

// UploadConfig holds upload and run processing settings.
type UploadConfig struct {
	// AllowedExt is the only file extension processed; others are ignored (default: .txt)
	AllowedExt string `env:"UPLOAD_ALLOWED_EXT" default:".txt"`

	// MaxFileSize is the maximum request body size, e.g. 10485760 or 10MB (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" unit:"bytes" default:"10MB"`

	// MaxConcurrent is the number of runs allowed to talk to the ERP at once (default: 1)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long to wait for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of a run (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`

	// HistorySize is how many runs the in-memory history keeps (default: 200)
	HistorySize int `env:"UPLOAD_HISTORY_SIZE" default:"200"`
}

// DatabaseConfig holds the optional run history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty keeps history in memory.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" secret:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// HistoryRetentionDays is how long stored runs are kept; 0 keeps them forever (default: 90)
	HistoryRetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"90"`

	// PruneInterval is how often old runs are deleted (default: 24h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"24h"`
}

// Enabled reports whether a history database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key validation on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS" secret:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled exposes /metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
