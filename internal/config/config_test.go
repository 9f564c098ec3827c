package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"BACKEND_BASE_URL": "http://care.local:8080/api/"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.BackendBaseURL != "http://care.local:8080/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendBaseURL)
	}
	if cfg.BackendWSURL != "ws://care.local:8080/ws" {
		t.Fatalf("unexpected derived ws url %q", cfg.BackendWSURL)
	}
	if cfg.WSMaxRetries != 5 || cfg.WSRetryDelay != 5*time.Second {
		t.Fatalf("unexpected reconnect defaults %d %v", cfg.WSMaxRetries, cfg.WSRetryDelay)
	}
	if cfg.NotifyDedupCapacity != 1000 || cfg.RedisPrefix != "guardian:" || cfg.LoginRateLimit != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfigFromEnv_MissingBackend(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"BACKEND_BASE_URL":       "https://care.example.com",
		"PORT":                   "1234",
		"WS_MAX_RETRIES":         "0",
		"WS_RETRY_DELAY_SECONDS": "2",
		"COMMAND_RATE_PER_SEC":   "0.5",
		"REDIS_ADDR":             "localhost:6379",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 || cfg.WSMaxRetries != 0 || cfg.WSRetryDelay != 2*time.Second {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.BackendWSURL != "wss://care.example.com/ws" {
		t.Fatalf("expected wss for https base, got %q", cfg.BackendWSURL)
	}
	if cfg.CommandRatePerSec != 0.5 || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	base := "http://care.local"
	cases := []mapEnv{
		{"BACKEND_BASE_URL": "ftp://care.local"},
		{"BACKEND_BASE_URL": base, "PORT": "70000"},
		{"BACKEND_BASE_URL": base, "BACKEND_WS_URL": "http://care.local/ws"},
		{"BACKEND_BASE_URL": base, "WS_MAX_RETRIES": "-1"},
		{"BACKEND_BASE_URL": base, "NOTIFY_DEDUP_CAPACITY": "0"},
		{"BACKEND_BASE_URL": base, "TLS_CERT_FILE": "cert.pem"},
		{"BACKEND_BASE_URL": base, "BACKEND_TIMEOUT_SECONDS": "soon"},
	}
	for _, env := range cases {
		if _, err := LoadConfigFromEnv(env); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
}
