// Package config provides configuration for the tmpldb server and shell.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects which transports to serve.
type Mode string

const (
	ModeAll  Mode = "all"
	ModeHTTP Mode = "http"
	ModeGRPC Mode = "grpc"
)

// Config holds the configuration for a tmpldb server.
type Config struct {
	// Mode specifies which transports to run: all, http, grpc
	Mode Mode `json:"mode" yaml:"mode"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// gRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Shutdown configuration
	Shutdown ShutdownConfig `json:"shutdown" yaml:"shutdown"`

	// Query limits
	Query QueryConfig `json:"query" yaml:"query"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// Compression enables snappy framed responses for clients that ask for them
	Compression bool `json:"compression" yaml:"compression"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled in mode all
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is text (coloured when on a terminal) or json
	Format string `json:"format" yaml:"format"`

	// NoColor disables colour even on a terminal
	NoColor bool `json:"no_color" yaml:"no_color"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	// Enabled serves metrics on the HTTP listener
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the metrics endpoint path
	Path string `json:"path" yaml:"path"`
}

// ShutdownConfig holds graceful shutdown timings.
type ShutdownConfig struct {
	// Timeout bounds the whole shutdown
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// DrainTimeout bounds the wait for in-flight requests
	DrainTimeout time.Duration `json:"drain_timeout" yaml:"drain_timeout"`
}

// QueryConfig holds limits applied to submitted statement sources.
type QueryConfig struct {
	// MaxSourceBytes caps the size of one submitted source
	MaxSourceBytes int64 `json:"max_source_bytes" yaml:"max_source_bytes"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeAll,
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
			Compression:  true,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Shutdown: ShutdownConfig{
			Timeout:      30 * time.Second,
			DrainTimeout: 15 * time.Second,
		},
		Query: QueryConfig{
			MaxSourceBytes: 1 << 20,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeHTTP, ModeGRPC:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, http, or grpc)", c.Mode)
	}

	if c.ShouldRunHTTP() && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required in mode %s", c.Mode)
	}
	if c.ShouldRunGRPC() && c.GRPC.Addr == "" {
		return fmt.Errorf("grpc.addr is required in mode %s", c.Mode)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if c.Query.MaxSourceBytes <= 0 {
		return fmt.Errorf("query.max_source_bytes must be positive, got %d", c.Query.MaxSourceBytes)
	}

	return nil
}

// ShouldRunHTTP returns true if the HTTP API should run.
func (c *Config) ShouldRunHTTP() bool {
	return c.Mode == ModeAll || c.Mode == ModeHTTP
}

// ShouldRunGRPC returns true if the gRPC API should run.
func (c *Config) ShouldRunGRPC() bool {
	return c.Mode == ModeGRPC || (c.Mode == ModeAll && c.GRPC.Enabled)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
	return level, nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides cfg from environment variables.
// Environment variables use the TMPLDB_ prefix. Malformed numeric, boolean
// and duration values are reported rather than ignored.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("TMPLDB_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}

	// HTTP configuration
	if v := os.Getenv("TMPLDB_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if err := envDuration("TMPLDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := envDuration("TMPLDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return err
	}
	if err := envDuration("TMPLDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return err
	}
	if err := envBool("TMPLDB_HTTP_COMPRESSION", &cfg.HTTP.Compression); err != nil {
		return err
	}

	// gRPC configuration
	if v := os.Getenv("TMPLDB_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if err := envBool("TMPLDB_GRPC_ENABLED", &cfg.GRPC.Enabled); err != nil {
		return err
	}

	// Log configuration
	if v := os.Getenv("TMPLDB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TMPLDB_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if err := envBool("TMPLDB_LOG_NO_COLOR", &cfg.Log.NoColor); err != nil {
		return err
	}

	// Metrics configuration
	if err := envBool("TMPLDB_METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("TMPLDB_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Shutdown configuration
	if err := envDuration("TMPLDB_SHUTDOWN_TIMEOUT", &cfg.Shutdown.Timeout); err != nil {
		return err
	}
	if err := envDuration("TMPLDB_SHUTDOWN_DRAIN_TIMEOUT", &cfg.Shutdown.DrainTimeout); err != nil {
		return err
	}

	// Query configuration
	if v := os.Getenv("TMPLDB_QUERY_MAX_SOURCE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TMPLDB_QUERY_MAX_SOURCE_BYTES: %w", err)
		}
		cfg.Query.MaxSourceBytes = n
	}

	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
