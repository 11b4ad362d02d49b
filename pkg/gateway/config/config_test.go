package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AMPARO_API_KEYS", "k1,k2")
	t.Setenv("AMPARO_BACKEND_API_KEY", "sk-test")
	t.Setenv("AMPARO_POSTGRES_DSN", "postgres://localhost/amparo")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeRequired {
		t.Fatalf("unexpected auth mode %q", cfg.AuthMode)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("expected 2 api keys, got %d", len(cfg.APIKeys))
	}
	if cfg.ToolTimeout != 10*time.Second {
		t.Fatalf("unexpected tool timeout %v", cfg.ToolTimeout)
	}
	if cfg.MaxSessionDuration != 2*time.Hour {
		t.Fatalf("unexpected max session duration %v", cfg.MaxSessionDuration)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("AMPARO_ADDR", ":9999")
	t.Setenv("AMPARO_TOOL_TIMEOUT", "3s")
	t.Setenv("AMPARO_TURN_WINDOW_SIZE", "50")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ToolTimeout != 3*time.Second || cfg.TurnWindowSize != 50 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadFromEnvRequiresKeysWhenAuthRequired(t *testing.T) {
	t.Setenv("AMPARO_BACKEND_API_KEY", "sk-test")
	t.Setenv("AMPARO_POSTGRES_DSN", "postgres://localhost/amparo")
	t.Setenv("AMPARO_API_KEYS", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error without api keys")
	}
}

func TestLoadFromEnvAuthDisabled(t *testing.T) {
	t.Setenv("AMPARO_AUTH_MODE", "disabled")
	t.Setenv("AMPARO_BACKEND_API_KEY", "sk-test")
	t.Setenv("AMPARO_POSTGRES_DSN", "postgres://localhost/amparo")

	if _, err := LoadFromEnv(); err != nil {
		t.Fatalf("expected disabled auth to load, got %v", err)
	}
}

func TestLoadFromEnvRejectsBadAuthMode(t *testing.T) {
	setRequired(t)
	t.Setenv("AMPARO_AUTH_MODE", "maybe")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for bad auth mode")
	}
}

func TestLoadFromEnvRequiresPostgres(t *testing.T) {
	t.Setenv("AMPARO_API_KEYS", "k1")
	t.Setenv("AMPARO_BACKEND_API_KEY", "sk-test")
	t.Setenv("AMPARO_POSTGRES_DSN", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error without postgres dsn")
	}
}
