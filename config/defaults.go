package config

import (
	"time"

	"github.com/eigloo/agentgraph/run"
)

// DefaultConfig returns the configuration used when no file or
// environment override applies.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "agentgraph",
			Name:            "agentgraph",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Bus: BusConfig{
			Kind:         "redis",
			TopicPrefix:  "agentgraph",
			StreamMaxLen: 100000,
		},
		Engine: EngineConfig{
			MaxErrorLength: run.DefaultMaxErrorLength,
			GraphCacheTTL:  time.Minute,
		},
		Guardrails: GuardrailsConfig{
			MaxFanOut:        0,
			MaxRecordsPerRun: 0,
			MaxErrorBytes:    0,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			OutputPaths:  []string{"stdout"},
			EnableCaller: true,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "agentgraph",
			SampleRate:   1.0,
		},
	}
}
