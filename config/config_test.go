package config

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"8s", 8 * time.Second},
		{"1h", time.Hour},
		{"30", 30 * time.Second},
		{"soon", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", 5*time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
	if got := getEnvDuration("TEST_DURATION_UNSET", time.Minute); got != time.Minute {
		t.Errorf("unset = %v", got)
	}
}

func TestGetEnvScalars(t *testing.T) {
	t.Setenv("TEST_INT", "7")
	t.Setenv("TEST_BAD_INT", "seven")
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_BOOL", " true ")

	if got := getEnvInt("TEST_INT", 1); got != 7 {
		t.Errorf("int = %d", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 1); got != 1 {
		t.Errorf("bad int = %d, want fallback", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 0); got != 2.5 {
		t.Errorf("float = %v", got)
	}
	if !getEnvBool("TEST_BOOL", false) {
		t.Error("bool = false")
	}
	if got := getEnv("TEST_UNSET_STRING", "fallback"); got != "fallback" {
		t.Errorf("string = %q", got)
	}
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("RESOLVE_TIMEOUT", "3s")
	t.Setenv("BACKEND_RATE_LIMIT", "4")
	t.Setenv("DEFAULT_SOURCE", "tidal")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ResolveTimeout != 3*time.Second {
		t.Errorf("ResolveTimeout = %v", cfg.ResolveTimeout)
	}
	if cfg.BackendRateLimit != 4 {
		t.Errorf("BackendRateLimit = %v", cfg.BackendRateLimit)
	}
	if cfg.DefaultSource != "tidal" || !cfg.MinioUseSSL {
		t.Errorf("cfg = %+v", cfg)
	}
}
