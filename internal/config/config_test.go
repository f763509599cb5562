package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Errorf("HTTP.Addr = %q, want :5000", cfg.HTTP.Addr)
	}
	if cfg.Generator.Interval != 50*time.Second {
		t.Errorf("Generator.Interval = %s, want 50s", cfg.Generator.Interval)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("Storage.Driver = %q, want postgres", cfg.Storage.Driver)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attackwatch.yaml")
	data := []byte(`
http:
  addr: ":9000"
storage:
  driver: memory
generator:
  interval: 5s
  sample_pool: single
relay:
  kafka:
    enabled: true
    brokers: ["k1:9092"]
    topic: attacks
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ATTACKWATCH_HTTP_ADDR", ":9100")
	t.Setenv("ATTACK_INTERVAL_MS", "1500")
	t.Setenv("ATTACKWATCH_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Addr != ":9100" {
		t.Errorf("HTTP.Addr = %q, want env override :9100", cfg.HTTP.Addr)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Storage.Driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Generator.Interval != 1500*time.Millisecond {
		t.Errorf("Generator.Interval = %s, want 1.5s", cfg.Generator.Interval)
	}
	if cfg.Generator.SamplePool != "single" {
		t.Errorf("Generator.SamplePool = %q, want single", cfg.Generator.SamplePool)
	}
	if !cfg.Relay.Redis.Enabled {
		t.Error("Relay.Redis.Enabled = false, want true")
	}
	if !cfg.Relay.Kafka.Enabled || cfg.Relay.Kafka.Topic != "attacks" {
		t.Errorf("Relay.Kafka = %+v", cfg.Relay.Kafka)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"empty dsn", func(c *Config) { c.Storage.DSN = "" }},
		{"zero interval", func(c *Config) { c.Generator.Interval = 0 }},
		{"bad pool", func(c *Config) { c.Generator.SamplePool = "many" }},
		{"dev secret in production", func(c *Config) { c.Logging.Env = "production" }},
		{"kafka without topic", func(c *Config) { c.Relay.Kafka.Enabled = true; c.Relay.Kafka.Topic = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("ATTACKWATCH_GENERATOR_INTERVAL", "soon")
	if _, err := Load(""); err == nil {
		t.Error("Load() with bad duration = nil error")
	}
}
