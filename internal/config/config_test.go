package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != "8080" {
		t.Errorf("server port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Admission.BurstWindow != 10*time.Second {
		t.Errorf("burst window = %s, want 10s", cfg.Admission.BurstWindow)
	}
	if cfg.Admission.FailedLoginLimit != 10 {
		t.Errorf("failed login limit = %d, want 10", cfg.Admission.FailedLoginLimit)
	}
	if cfg.Admission.ErrorRateThreshold != 0.5 {
		t.Errorf("error rate threshold = %g, want 0.5", cfg.Admission.ErrorRateThreshold)
	}
	if cfg.Admission.BlockThreshold != "critical" {
		t.Errorf("block threshold = %q, want critical", cfg.Admission.BlockThreshold)
	}
	if len(cfg.Admission.SkipPaths) != 2 {
		t.Errorf("skip paths = %v, want /health and /metrics", cfg.Admission.SkipPaths)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ADMISSION_BURST_WINDOW", "30s")
	t.Setenv("ADMISSION_ERROR_RATE_THRESHOLD", "0.75")
	t.Setenv("ADMISSION_SUSPICIOUS_RANGES", "198.51.100.0/24, 192.0.2.0/24")
	t.Setenv("ADMISSION_SKIP_PATHS", "/health")

	cfg := Load()

	if cfg.Server.Port != "9090" {
		t.Errorf("server port = %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 3 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Admission.BurstWindow != 30*time.Second {
		t.Errorf("burst window = %s", cfg.Admission.BurstWindow)
	}
	if cfg.Admission.ErrorRateThreshold != 0.75 {
		t.Errorf("error rate threshold = %g", cfg.Admission.ErrorRateThreshold)
	}
	want := []string{"198.51.100.0/24", "192.0.2.0/24"}
	if len(cfg.Admission.SuspiciousRanges) != len(want) {
		t.Fatalf("suspicious ranges = %v, want %v", cfg.Admission.SuspiciousRanges, want)
	}
	for i := range want {
		if cfg.Admission.SuspiciousRanges[i] != want[i] {
			t.Errorf("suspicious ranges[%d] = %q, want %q", i, cfg.Admission.SuspiciousRanges[i], want[i])
		}
	}
	if len(cfg.Admission.SkipPaths) != 1 || cfg.Admission.SkipPaths[0] != "/health" {
		t.Errorf("skip paths = %v", cfg.Admission.SkipPaths)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "lots")
	t.Setenv("ADMISSION_BURST_WINDOW", "soon")
	t.Setenv("ADMISSION_ERROR_RATE_THRESHOLD", "half")

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("max open conns = %d, want default 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Admission.BurstWindow != 10*time.Second {
		t.Errorf("burst window = %s, want default 10s", cfg.Admission.BurstWindow)
	}
	if cfg.Admission.ErrorRateThreshold != 0.5 {
		t.Errorf("error rate threshold = %g, want default 0.5", cfg.Admission.ErrorRateThreshold)
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "palmistry"}
	want := "host=db port=5433 user=u password=p dbname=palmistry sslmode=disable"
	if got := db.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
