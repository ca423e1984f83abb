package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "telegram:\n  token: \"t0ken\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Summary.TTL != 60*time.Second {
		t.Fatalf("Summary.TTL = %v, want 60s", cfg.Summary.TTL)
	}
	if cfg.Poller.Interval != 60*time.Second {
		t.Fatalf("Poller.Interval = %v, want 60s", cfg.Poller.Interval)
	}
	if cfg.Poller.Mode != "inline" {
		t.Fatalf("Poller.Mode = %q, want inline", cfg.Poller.Mode)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Broadcast.Concurrency != 8 {
		t.Fatalf("Broadcast.Concurrency = %d, want 8", cfg.Broadcast.Concurrency)
	}
}

func TestLoadMissingToken(t *testing.T) {
	path := writeFile(t, "config.yaml", "log:\n  level: debug\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing telegram token")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		mut  func(c *Config)
	}{
		{name: "bad driver", mut: func(c *Config) { c.Storage.Driver = "mongodb" }},
		{name: "postgres without url", mut: func(c *Config) { c.Storage.Driver = "postgres" }},
		{name: "bad poller mode", mut: func(c *Config) { c.Poller.Mode = "batch" }},
		{name: "queue mode without queue", mut: func(c *Config) { c.Poller.Mode = "queue" }},
		{name: "zero interval", mut: func(c *Config) { c.Poller.Interval = 0 }},
		{name: "zero ttl", mut: func(c *Config) { c.Summary.TTL = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			c.Telegram.Token = "t0ken"
			c.Storage.Driver = "memory"
			c.Poller.Mode = "inline"
			c.Poller.Interval = time.Minute
			c.Summary.TTL = time.Minute
			tt.mut(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
