package testing

import (
	"testing"
	"time"

	"github.com/xiangmingya/DownloadMusic/internal/platform/config"
	"github.com/xiangmingya/DownloadMusic/internal/platform/logging"
)

func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 8090
	cfg.Log.Level = "debug"
	cfg.Session.Secret = "test-session-secret"
	cfg.Session.AdminPassword = "test-admin-password"
	cfg.Session.TTL = time.Hour
	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{Level: "debug"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
