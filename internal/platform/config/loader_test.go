package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "unit-test-secret")

	res, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	cfg := res.Config
	if cfg.Server.Port != 8090 {
		t.Fatalf("expected default port 8090, got %d", cfg.Server.Port)
	}
	if cfg.Session.CookieName != "dm_session" {
		t.Fatalf("unexpected cookie name: %s", cfg.Session.CookieName)
	}
	if cfg.Session.TTL != 30*24*time.Hour {
		t.Fatalf("unexpected session ttl: %s", cfg.Session.TTL)
	}
	if cfg.Resolve.BreakerCooldown != 45*time.Second {
		t.Fatalf("unexpected cooldown: %s", cfg.Resolve.BreakerCooldown)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
session:
  secret: from-file
  cookie_name: custom_session
resolve:
  store:
    driver: redis
    redis:
      addr: file:6379
`)
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	res, err := NewLoader().WithDotEnv(false).WithPath(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	cfg := res.Config
	if cfg.Server.Port != 9000 {
		t.Fatalf("file value not applied: %d", cfg.Server.Port)
	}
	if cfg.Session.CookieName != "custom_session" {
		t.Fatalf("cookie name not applied: %s", cfg.Session.CookieName)
	}
	if cfg.Resolve.Store.Redis.Addr != "env:6379" {
		t.Fatalf("env override lost: %s", cfg.Resolve.Store.Redis.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	if _, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "none.yaml")).Load(); err == nil {
		t.Fatalf("expected validation error without session secret")
	}
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	path := writeConfig(t, `
session:
  secret: s
resolve:
  store:
    driver: etcd
`)
	if _, err := NewLoader().WithDotEnv(false).WithPath(path).Load(); err == nil {
		t.Fatalf("expected error for unsupported store driver")
	}
}
