// Package config provides configuration loading for otelvault.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables (OTELVAULT_ prefix). This package holds the ingest server,
// query API, storage, logging, and telemetry settings.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Storage backend names accepted by the storage factory.
const (
	// BackendMemory is the in-process store for development and tests.
	BackendMemory = "memory"

	// BackendStandard is the PostgreSQL row store (multi-row INSERT).
	BackendStandard = "standard"

	// BackendBulk is the PostgreSQL bulk store (binary COPY with row
	// fallback). BackendHighPerformance is an accepted alias.
	BackendBulk            = "bulk"
	BackendHighPerformance = "highperformance"
)

// Config holds the complete otelvault configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	HTTP      HTTPConfig      `koanf:"http"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds the OTLP gRPC ingest listener configuration.
type ServerConfig struct {
	// GRPCAddr is the listen address for the OTLP collector services.
	GRPCAddr string `koanf:"grpc_addr"`

	// MaxRecvBytes caps the size of a single export request.
	MaxRecvBytes int `koanf:"max_recv_bytes"`

	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig holds the query API listener configuration.
type HTTPConfig struct {
	ListenAddr      string   `koanf:"listen_addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	// Backend is one of memory, standard, bulk, or highperformance.
	// Resolved once at startup; the process never switches backends.
	Backend string `koanf:"backend"`

	// DSN is the PostgreSQL connection string. Required for every
	// backend except memory.
	DSN Secret `koanf:"dsn"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// TelemetryConfig holds the service's own OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`

	// Protocol selects the exporter transport: "grpc" or "http/protobuf".
	Protocol string `koanf:"protocol"`

	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// Insecure disables TLS on the exporter connection. Only honored
	// for local endpoints.
	Insecure bool `koanf:"insecure"`

	// SampleRate is the trace sampling ratio, 0.0-1.0.
	SampleRate float64 `koanf:"sample_rate"`

	// MetricInterval is the metric export period.
	MetricInterval Duration `koanf:"metric_interval"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = ":4317"
	}
	if cfg.Server.MaxRecvBytes == 0 {
		cfg.Server.MaxRecvBytes = 16 * 1024 * 1024
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.HTTP.ListenAddr == "" {
		cfg.HTTP.ListenAddr = ":8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "otelvault"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.MetricInterval == 0 {
		cfg.Telemetry.MetricInterval = Duration(15 * time.Second)
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - a listener address is empty or the receive cap is not positive
//   - the storage backend is unrecognized
//   - a PostgreSQL backend is selected without a DSN
//   - telemetry is enabled with an incomplete exporter setup
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return errors.New("server grpc_addr is required")
	}
	if c.Server.MaxRecvBytes <= 0 {
		return fmt.Errorf("server max_recv_bytes must be positive, got %d", c.Server.MaxRecvBytes)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}

	if c.HTTP.ListenAddr == "" {
		return errors.New("http listen_addr is required")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendStandard, BackendBulk, BackendHighPerformance:
		if !c.Storage.DSN.IsSet() {
			return fmt.Errorf("storage backend %q requires a dsn", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.ServiceName == "" {
			return errors.New("telemetry service_name is required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
		}
	}

	return nil
}
