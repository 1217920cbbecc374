// Package config loads the daemon configuration. Precedence is
// defaults, then the YAML file, then environment variable overrides
// with the AGENTGRAPH prefix.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete daemon configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Database   DatabaseConfig   `yaml:"database" env:"DATABASE"`
	Redis      RedisConfig      `yaml:"redis" env:"REDIS"`
	Bus        BusConfig        `yaml:"bus" env:"BUS"`
	Engine     EngineConfig     `yaml:"engine" env:"ENGINE"`
	Guardrails GuardrailsConfig `yaml:"guardrails" env:"GUARDRAILS"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig configures the backing store.
type DatabaseConfig struct {
	// Driver selects the store backend: postgres, sqlite, or memory.
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns the driver connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// RedisConfig configures the Redis client shared by the bus and the
// graph-lookup cache.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// BusConfig configures node input delivery.
type BusConfig struct {
	// Kind selects the bus backend: redis or memory.
	Kind        string `yaml:"kind" env:"KIND"`
	TopicPrefix string `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	// StreamMaxLen caps each Redis stream (approximate trim); zero keeps
	// streams unbounded.
	StreamMaxLen int64 `yaml:"stream_max_len" env:"STREAM_MAX_LEN"`
}

// EngineConfig configures the run lifecycle engine.
type EngineConfig struct {
	// MaxErrorLength bounds a failed run's stored error message.
	MaxErrorLength int `yaml:"max_error_length" env:"MAX_ERROR_LENGTH"`
	// GraphCacheTTL bounds how long a fetched topology may be served from
	// cache; zero disables the cache.
	GraphCacheTTL time.Duration `yaml:"graph_cache_ttl" env:"GRAPH_CACHE_TTL"`
}

// GuardrailsConfig configures the built-in guardrails.
type GuardrailsConfig struct {
	// MaxFanOut caps a plan's declared next tasks; zero disables the check.
	MaxFanOut int `yaml:"max_fan_out" env:"MAX_FAN_OUT"`
	// MaxRecordsPerRun bounds cyclic graphs against re-triggering forever;
	// zero disables the check.
	MaxRecordsPerRun int `yaml:"max_records_per_run" env:"MAX_RECORDS_PER_RUN"`
	// MaxErrorBytes rejects records with oversized error messages; zero
	// disables the check.
	MaxErrorBytes int `yaml:"max_error_bytes" env:"MAX_ERROR_BYTES"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks the loaded configuration for values no backend could
// accept.
func (c *Config) Validate() error {
	var errs []string
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Bus.Kind {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Sprintf("unknown bus kind %q", c.Bus.Kind))
	}
	if c.Engine.MaxErrorLength <= 0 {
		errs = append(errs, "max_error_length must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
