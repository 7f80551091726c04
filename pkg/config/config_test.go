package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/factory/pkg/stores"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.FactoriesDir != "test/factories" {
		t.Fatalf("unexpected factories dir %q", cfg.FactoriesDir)
	}
	if cfg.Store.Driver != stores.DriverMemory {
		t.Fatalf("unexpected driver %q", cfg.Store.Driver)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty factories dir",
			mutate:  func(c *Config) { c.FactoriesDir = "" },
			wantErr: "FactoriesDir",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "oneof",
		},
		{
			name:    "sqlite without dsn",
			mutate:  func(c *Config) { c.Store.Driver = stores.DriverSQLite },
			wantErr: "required_unless",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Telemetry.Logging.Level = "loud" },
			wantErr: "invalid log level",
		},
		{
			name: "sqlite with dsn",
			mutate: func(c *Config) {
				c.Store.Driver = stores.DriverSQLite
				c.Store.DSN = ":memory:"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Telemetry.Metrics.Namespace != "factory" {
		t.Fatalf("unexpected namespace %q", cfg.Telemetry.Metrics.Namespace)
	}
	if cfg.Telemetry.Tracing.ExportTimeout != 30*time.Second {
		t.Fatalf("unexpected export timeout %v", cfg.Telemetry.Tracing.ExportTimeout)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "factory.yaml", `
factories_dir: fixtures/factories
store:
  driver: sqlite
  dsn: /tmp/factory.db
  models: [User, Post]
  conn_max_lifetime: 5m
telemetry:
  logging:
    level: debug
    format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.FactoriesDir != "fixtures/factories" {
		t.Fatalf("unexpected factories dir %q", cfg.FactoriesDir)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "/tmp/factory.db" {
		t.Fatalf("unexpected store %+v", cfg.Store)
	}
	if len(cfg.Store.Models) != 2 || cfg.Store.Models[1] != "Post" {
		t.Fatalf("unexpected models %v", cfg.Store.Models)
	}
	if cfg.Store.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("unexpected lifetime %v", cfg.Store.ConnMaxLifetime)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "json" {
		t.Fatalf("unexpected logging %+v", cfg.Telemetry.Logging)
	}
	// Untouched keys keep their defaults.
	if cfg.Store.MaxOpenConns != 10 || cfg.Telemetry.Logging.Output != "stderr" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoad_CUE(t *testing.T) {
	path := writeConfig(t, "factory.cue", `
_dir: "defs"
factories_dir: "fixtures/" + _dir
store: {
	driver: "sqlite"
	dsn:    ":memory:"
}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.FactoriesDir != "fixtures/defs" || cfg.Store.Driver != "sqlite" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("FACTORY_FACTORIES_DIR", "env/factories")
	t.Setenv("FACTORY_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.FactoriesDir != "env/factories" {
		t.Fatalf("unexpected factories dir %q", cfg.FactoriesDir)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Fatalf("unexpected level %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			wantErr: "failed to read config",
		},
		{
			name:    "invalid driver",
			path:    func(t *testing.T) string { return writeConfig(t, "bad.yaml", "store:\n  driver: mysql\n") },
			wantErr: "invalid config",
		},
		{
			name:    "incomplete cue",
			path:    func(t *testing.T) string { return writeConfig(t, "bad.cue", "factories_dir: string\n") },
			wantErr: "failed to evaluate config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
