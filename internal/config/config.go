// Package config provides configuration types, defaults and validation for statesync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/statesync/internal/flags"
	"github.com/zjrosen/statesync/internal/log"
)

// Config holds all configuration options for statesync.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Flags toggles optional surfaces; see package flags for known names.
	Flags map[string]bool `mapstructure:"flags" yaml:"flags"`
}

// ServerConfig holds HTTP listener and protocol settings.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., ":8080" or "localhost:0").
	Addr string `mapstructure:"addr" yaml:"addr"`

	// MaxBodyBytes caps request bodies; larger bodies abort the connection.
	// Default: 16384
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`

	// LongPollTimeout bounds how long a read for a future version blocks.
	// Default: 30s
	LongPollTimeout time.Duration `mapstructure:"long_poll_timeout" yaml:"long_poll_timeout"`

	// ReadHeaderTimeout bounds reading request headers.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info (default), warn, error
	File  string `mapstructure:"file" yaml:"file"`   // empty logs to stderr
}

// CacheConfig holds snapshot cache options.
type CacheConfig struct {
	// SnapshotTTL is how long an encoded (id, version) response is kept. 0 disables the cache.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" yaml:"snapshot_ttl"`

	// CleanupInterval is how often expired entries are purged.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter" yaml:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/statesync/traces/traces.jsonl
	FilePath string `mapstructure:"file_path" yaml:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`

	// ServiceName identifies this service in traces.
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/statesync/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "statesync", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			MaxBodyBytes:      16 * 1024,
			LongPollTimeout:   30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			SnapshotTTL:     time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "statesync",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Flags: flags.Defaults(),
	}
}

// Validate checks the whole configuration and returns the first error found.
func (c Config) Validate() error {
	if err := ValidateServer(c.Server); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Cache.SnapshotTTL < 0 {
		return fmt.Errorf("cache.snapshot_ttl must not be negative, got %v", c.Cache.SnapshotTTL)
	}
	if c.Cache.SnapshotTTL > 0 && c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("cache.cleanup_interval must be positive when the cache is enabled")
	}
	return ValidateTracing(c.Tracing)
}

// ValidateServer checks server configuration for errors.
func ValidateServer(s ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", s.MaxBodyBytes)
	}
	if s.LongPollTimeout <= 0 {
		return fmt.Errorf("server.long_poll_timeout must be positive, got %v", s.LongPollTimeout)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative, got %v", s.ShutdownTimeout)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# statesync configuration

server:
  addr: ":8080"              # Listen address
  max_body_bytes: 16384      # Larger request bodies abort the connection
  long_poll_timeout: 30s     # How long GET /{name}/{version} waits for a newer version
  read_header_timeout: 10s
  shutdown_timeout: 10s

log:
  level: info                # debug, info, warn, error (reloaded live)
  # file: /var/log/statesync.log   # Default: stderr

# Cache of encoded responses per (resource, version)
cache:
  snapshot_ttl: 1m           # 0 disables the cache
  cleanup_interval: 5m

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/statesync/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Prometheus metrics on GET /_metrics
metrics:
  enabled: true

# Optional surfaces
flags:
  event-stream: true         # GET /_events change feed
  config-reload: true        # Apply log.level and long_poll_timeout edits live
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
