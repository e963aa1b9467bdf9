package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engaged.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.RateLimit != 50 || cfg.HTTP.RateBurst != 100 {
		t.Fatalf("http defaults: %+v", cfg.HTTP)
	}
	if cfg.LogLevel != "info" || cfg.Chain.Network != "devnet" {
		t.Fatalf("defaults: level=%q network=%q", cfg.LogLevel, cfg.Chain.Network)
	}
	if cfg.Postgres.DSN != "" || cfg.Redis.Addr != "" {
		t.Fatalf("backends default on: %+v", cfg)
	}
}

func TestLoad_YAMLWinsOverDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
  rate_limit: 5
chain:
  network: mainnet
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.HTTP.RateLimit != 5 {
		t.Fatalf("yaml http: %+v", cfg.HTTP)
	}
	if cfg.LogLevel != "debug" || cfg.Chain.Network != "mainnet" {
		t.Fatalf("yaml values: level=%q network=%q", cfg.LogLevel, cfg.Chain.Network)
	}
	// Unset fields still fall back to defaults.
	if cfg.HTTP.RateBurst != 100 {
		t.Fatalf("burst default: %d", cfg.HTTP.RateBurst)
	}
}

func TestLoad_EnvWinsOverYAML(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
log_level: debug
postgres:
  dsn: yaml-dsn
`)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("POSTGRES_DSN", "env-dsn")
	t.Setenv("MESSAGE_SECRET", "hush")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" || cfg.LogLevel != "warn" {
		t.Fatalf("env overrides: %+v", cfg)
	}
	if cfg.Postgres.DSN != "env-dsn" {
		t.Fatalf("dsn: %q", cfg.Postgres.DSN)
	}
	if cfg.Messages.Secret != "hush" {
		t.Fatalf("secret: %q", cfg.Messages.Secret)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "http: [not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
