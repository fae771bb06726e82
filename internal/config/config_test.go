package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.ShouldRunHTTP() || !cfg.ShouldRunGRPC() {
		t.Error("mode all should run both transports")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"http only", func(c *Config) { c.Mode = ModeHTTP }, false},
		{"grpc only", func(c *Config) { c.Mode = ModeGRPC }, false},
		{"bad mode", func(c *Config) { c.Mode = "ingest" }, true},
		{"http without addr", func(c *Config) { c.HTTP.Addr = "" }, true},
		{"grpc without addr in grpc mode", func(c *Config) { c.Mode = ModeGRPC; c.GRPC.Addr = "" }, true},
		{"grpc addr unused in http mode", func(c *Config) { c.Mode = ModeHTTP; c.GRPC.Addr = "" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, true},
		{"metrics disabled ignores path", func(c *Config) { c.Metrics.Enabled = false; c.Metrics.Path = "" }, false},
		{"zero source limit", func(c *Config) { c.Query.MaxSourceBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestShouldRunGRPC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GRPC.Enabled = false
	if cfg.ShouldRunGRPC() {
		t.Error("disabled gRPC should not run in mode all")
	}
	cfg.Mode = ModeGRPC
	if !cfg.ShouldRunGRPC() {
		t.Error("mode grpc always runs gRPC")
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmpldb.yaml")
	data := `
mode: http
http:
  addr: ":18080"
  read_timeout: 5s
log:
  level: debug
  format: json
query:
  max_source_bytes: 4096
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Mode != ModeHTTP || cfg.HTTP.Addr != ":18080" {
		t.Errorf("mode/addr = %s/%s", cfg.Mode, cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 60*time.Second {
		t.Errorf("unset write timeout should keep default, got %v", cfg.HTTP.WriteTimeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Query.MaxSourceBytes != 4096 {
		t.Errorf("max source bytes = %d", cfg.Query.MaxSourceBytes)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmpldb.json")
	if err := os.WriteFile(path, []byte(`{"mode":"grpc","grpc":{"addr":":19090"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Mode != ModeGRPC || cfg.GRPC.Addr != ":19090" {
		t.Errorf("mode/addr = %s/%s", cfg.Mode, cfg.GRPC.Addr)
	}
}

func TestLoadFromFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmpldb.toml")
	if err := os.WriteFile(path, []byte("mode = 'all'"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TMPLDB_MODE", "grpc")
	t.Setenv("TMPLDB_GRPC_ADDR", ":7000")
	t.Setenv("TMPLDB_HTTP_COMPRESSION", "false")
	t.Setenv("TMPLDB_SHUTDOWN_DRAIN_TIMEOUT", "2s")
	t.Setenv("TMPLDB_QUERY_MAX_SOURCE_BYTES", "512")
	t.Setenv("TMPLDB_LOG_NO_COLOR", "1")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Mode != ModeGRPC || cfg.GRPC.Addr != ":7000" {
		t.Errorf("mode/addr = %s/%s", cfg.Mode, cfg.GRPC.Addr)
	}
	if cfg.HTTP.Compression {
		t.Error("compression should be off")
	}
	if cfg.Shutdown.DrainTimeout != 2*time.Second {
		t.Errorf("drain timeout = %v", cfg.Shutdown.DrainTimeout)
	}
	if cfg.Query.MaxSourceBytes != 512 {
		t.Errorf("max source bytes = %d", cfg.Query.MaxSourceBytes)
	}
	if !cfg.Log.NoColor {
		t.Error("no color should be set")
	}
}

func TestLoadFromEnvRejectsMalformed(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TMPLDB_HTTP_READ_TIMEOUT", "soon"},
		{"TMPLDB_GRPC_ENABLED", "maybe"},
		{"TMPLDB_QUERY_MAX_SOURCE_BYTES", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := LoadFromEnv(DefaultConfig()); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel(""); err == nil {
		t.Error("empty level should be rejected")
	}
}
