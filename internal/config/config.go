// Package config provides configuration loading for gridwalker.
//
// Configuration is loaded from environment variables with sensible defaults,
// optionally layered on top of a YAML file (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete gridwalker configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	GraphQL       GraphQLConfig       `koanf:"graphql"`
	Grid          GridConfig          `koanf:"grid"`
	Audit         AuditConfig         `koanf:"audit"`
	Prompt        PromptConfig        `koanf:"prompt"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds REST server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second per client, 0 disables
}

// GraphQLConfig holds GraphQL endpoint configuration.
type GraphQLConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

// GridConfig holds the robot grid dimensions.
type GridConfig struct {
	Width  int `koanf:"width"`
	Height int `koanf:"height"`
}

// Audit store kinds.
const (
	AuditStoreSQLite = "sqlite"
	AuditStoreMemory = "memory"
)

// AuditConfig holds audit sink configuration.
//
// Store selects the durable SQLite store at Path (the default) or, as an
// explicit opt-in, a process-local memory store that is lost on exit.
// NATSURL additionally publishes every event when set.
type AuditConfig struct {
	Store         string `koanf:"store"`
	Path          string `koanf:"path"`
	NATSURL       string `koanf:"nats_url"`
	NATSToken     Secret `koanf:"nats_token"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Async         bool   `koanf:"async"`
	BufferSize    int    `koanf:"buffer_size"`
}

// PromptConfig controls the interactive terminal prompt.
type PromptConfig struct {
	Enabled bool `koanf:"enabled"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
}

// LoggingConfig is the user-facing subset of logger settings.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
	OTEL     bool   `koanf:"otel"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
			RateLimit:       50,
		},
		GraphQL: GraphQLConfig{
			Enabled: true,
			Port:    4000,
		},
		Grid: GridConfig{
			Width:  6,
			Height: 4,
		},
		Audit: AuditConfig{
			Store:         AuditStoreSQLite,
			Path:          DefaultAuditPath(),
			SubjectPrefix: "gridwalker.audit",
			Async:         false,
			BufferSize:    256,
		},
		Prompt: PromptConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "gridwalker",
			Endpoint:        "localhost:4317",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sampling: true,
		},
	}
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - GRIDWALKER_SERVER_HOST: REST bind host (default: 0.0.0.0)
//   - GRIDWALKER_SERVER_PORT: REST port (default: 8080)
//   - GRIDWALKER_SERVER_SHUTDOWN_TIMEOUT: graceful shutdown timeout (default: 10s)
//   - GRIDWALKER_SERVER_RATE_LIMIT: requests per second per client (default: 50)
//   - GRIDWALKER_GRAPHQL_ENABLED / GRIDWALKER_GRAPHQL_PORT (default: true / 4000)
//   - GRIDWALKER_GRID_WIDTH / GRIDWALKER_GRID_HEIGHT (default: 6 / 4)
//   - GRIDWALKER_AUDIT_STORE: sqlite or memory (default: sqlite)
//   - GRIDWALKER_AUDIT_PATH: SQLite database file (default: $XDG_DATA_HOME/gridwalker/audit.db)
//   - GRIDWALKER_AUDIT_NATS_URL, GRIDWALKER_AUDIT_NATS_TOKEN
//   - GRIDWALKER_AUDIT_SUBJECT_PREFIX (default: gridwalker.audit)
//   - GRIDWALKER_AUDIT_ASYNC, GRIDWALKER_AUDIT_BUFFER_SIZE (default: false, 256)
//   - GRIDWALKER_PROMPT_ENABLED (default: true)
//   - GRIDWALKER_OBSERVABILITY_ENABLE_TELEMETRY (default: false)
//   - GRIDWALKER_OBSERVABILITY_SERVICE_NAME (default: gridwalker)
//   - GRIDWALKER_OBSERVABILITY_ENDPOINT (default: localhost:4317)
//   - GRIDWALKER_LOGGING_LEVEL, GRIDWALKER_LOGGING_FORMAT (default: info, json)
//   - GRIDWALKER_LOGGING_SAMPLING, GRIDWALKER_LOGGING_OTEL (default: true, false)
//
// Malformed values fall back to the default.
func Load() *Config {
	d := Default()
	return &Config{
		Server: ServerConfig{
			Host:            getEnvString("GRIDWALKER_SERVER_HOST", d.Server.Host),
			Port:            getEnvInt("GRIDWALKER_SERVER_PORT", d.Server.Port),
			ShutdownTimeout: Duration(getEnvDuration("GRIDWALKER_SERVER_SHUTDOWN_TIMEOUT", d.Server.ShutdownTimeout.Duration())),
			RateLimit:       getEnvFloat("GRIDWALKER_SERVER_RATE_LIMIT", d.Server.RateLimit),
		},
		GraphQL: GraphQLConfig{
			Enabled: getEnvBool("GRIDWALKER_GRAPHQL_ENABLED", d.GraphQL.Enabled),
			Port:    getEnvInt("GRIDWALKER_GRAPHQL_PORT", d.GraphQL.Port),
		},
		Grid: GridConfig{
			Width:  getEnvInt("GRIDWALKER_GRID_WIDTH", d.Grid.Width),
			Height: getEnvInt("GRIDWALKER_GRID_HEIGHT", d.Grid.Height),
		},
		Audit: AuditConfig{
			Store:         getEnvString("GRIDWALKER_AUDIT_STORE", d.Audit.Store),
			Path:          getEnvString("GRIDWALKER_AUDIT_PATH", d.Audit.Path),
			NATSURL:       getEnvString("GRIDWALKER_AUDIT_NATS_URL", d.Audit.NATSURL),
			NATSToken:     Secret(getEnvString("GRIDWALKER_AUDIT_NATS_TOKEN", "")),
			SubjectPrefix: getEnvString("GRIDWALKER_AUDIT_SUBJECT_PREFIX", d.Audit.SubjectPrefix),
			Async:         getEnvBool("GRIDWALKER_AUDIT_ASYNC", d.Audit.Async),
			BufferSize:    getEnvInt("GRIDWALKER_AUDIT_BUFFER_SIZE", d.Audit.BufferSize),
		},
		Prompt: PromptConfig{
			Enabled: getEnvBool("GRIDWALKER_PROMPT_ENABLED", d.Prompt.Enabled),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("GRIDWALKER_OBSERVABILITY_ENABLE_TELEMETRY", d.Observability.EnableTelemetry),
			ServiceName:     getEnvString("GRIDWALKER_OBSERVABILITY_SERVICE_NAME", d.Observability.ServiceName),
			Endpoint:        getEnvString("GRIDWALKER_OBSERVABILITY_ENDPOINT", d.Observability.Endpoint),
		},
		Logging: LoggingConfig{
			Level:    getEnvString("GRIDWALKER_LOGGING_LEVEL", d.Logging.Level),
			Format:   getEnvString("GRIDWALKER_LOGGING_FORMAT", d.Logging.Format),
			Sampling: getEnvBool("GRIDWALKER_LOGGING_SAMPLING", d.Logging.Sampling),
			OTEL:     getEnvBool("GRIDWALKER_LOGGING_OTEL", d.Logging.OTEL),
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - a port is not between 1 and 65535
//   - the shutdown timeout is not positive
//   - a grid dimension is not positive
//   - the audit buffer is not positive while async auditing is enabled
//   - the service name is empty while telemetry is enabled
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.Server.RateLimit)
	}

	if c.GraphQL.Enabled {
		if c.GraphQL.Port < 1 || c.GraphQL.Port > 65535 {
			return fmt.Errorf("invalid graphql port: %d (must be 1-65535)", c.GraphQL.Port)
		}
		if c.GraphQL.Port == c.Server.Port {
			return fmt.Errorf("graphql port %d collides with server port", c.GraphQL.Port)
		}
	}

	if c.Grid.Width < 1 || c.Grid.Height < 1 {
		return fmt.Errorf("invalid grid size %dx%d: dimensions must be positive", c.Grid.Width, c.Grid.Height)
	}

	switch c.Audit.Store {
	case AuditStoreSQLite:
		if strings.TrimSpace(c.Audit.Path) == "" {
			return errors.New("audit path required for the sqlite store")
		}
	case AuditStoreMemory:
	default:
		return fmt.Errorf("audit store must be 'sqlite' or 'memory', got %q", c.Audit.Store)
	}
	if c.Audit.Async && c.Audit.BufferSize < 1 {
		return fmt.Errorf("audit buffer size must be positive, got %d", c.Audit.BufferSize)
	}
	if c.Audit.NATSURL != "" && strings.TrimSpace(c.Audit.SubjectPrefix) == "" {
		return errors.New("audit subject prefix required when nats_url is set")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}

// DefaultAuditPath returns the SQLite audit database location:
// $XDG_DATA_HOME/gridwalker/audit.db, falling back to ~/.local/share and
// finally to gridwalker.db in the working directory.
func DefaultAuditPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gridwalker", "audit.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "gridwalker", "audit.db")
	}
	return "gridwalker.db"
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
