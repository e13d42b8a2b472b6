package infra

import (
	"os"
	"testing"
	"time"
)

// chdir switches the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Monitor.StatsInterval != 2*time.Second || cfg.Monitor.AlertsInterval != 2*time.Second {
		t.Fatalf("unexpected poll intervals %+v", cfg.Monitor)
	}
	if cfg.Monitor.AlertLimit != 10 {
		t.Fatalf("expected alert limit 10, got %d", cfg.Monitor.AlertLimit)
	}
	if cfg.Replay.PollInterval != time.Second {
		t.Fatalf("expected replay poll interval 1s, got %v", cfg.Replay.PollInterval)
	}
	if cfg.Backend.Timeout != 0 {
		t.Fatalf("expected no local timeout by default, got %v", cfg.Backend.Timeout)
	}
	if cfg.Redis.Addr != "" || cfg.Database.URL != "" || cfg.GRPC.Port != 0 {
		t.Fatalf("optional integrations must be disabled by default")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BACKEND_BASE_URL", "http://ids:8000")
	t.Setenv("MONITOR_STATS_INTERVAL", "500ms")
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.BaseURL != "http://ids:8000" {
		t.Fatalf("unexpected base url %q", cfg.Backend.BaseURL)
	}
	if cfg.Monitor.StatsInterval != 500*time.Millisecond {
		t.Fatalf("unexpected stats interval %v", cfg.Monitor.StatsInterval)
	}
	if cfg.Server.Addr() != ":9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr())
	}
}

func TestValidateRejectsRelativeBaseURL(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BACKEND_BASE_URL", "/api")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected validation error")
	}
}
