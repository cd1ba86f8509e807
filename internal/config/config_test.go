package config

import (
	"os"
	"testing"
	"time"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "API_ADDR", "APP_ENV", "CORS_ORIGIN", "REDIS_URL", "FORM_CACHE_TTL_SECONDS",
		"SOFT_DELETE_GRACE_HOURS", "PURGE_DRAFT_RESPONSES_ON_PUBLISH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8787" || cfg.Env != "production" || cfg.CORSOrigin != "*" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("expected cache disabled by default, got %q", cfg.RedisURL)
	}
	if cfg.FormCacheTTL() != time.Hour {
		t.Fatalf("expected 1h cache ttl, got %v", cfg.FormCacheTTL())
	}
	if cfg.SoftDeleteGrace() != 30*24*time.Hour {
		t.Fatalf("expected 30 day grace, got %v", cfg.SoftDeleteGrace())
	}
	if !cfg.PurgeOnPublish() {
		t.Fatal("expected purge on publish outside test env")
	}
}

func TestPurgeOnPublish(t *testing.T) {
	unsetenv(t, "PURGE_DRAFT_RESPONSES_ON_PUBLISH", "FORM_CACHE_TTL_SECONDS", "SOFT_DELETE_GRACE_HOURS")
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PurgeOnPublish() {
		t.Fatal("expected purge disabled in test env")
	}

	t.Setenv("PURGE_DRAFT_RESPONSES_ON_PUBLISH", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.PurgeOnPublish() {
		t.Fatal("explicit setting must win over env")
	}
}

func TestLoadRejectsNonPositiveDurations(t *testing.T) {
	unsetenv(t, "SOFT_DELETE_GRACE_HOURS", "PURGE_DRAFT_RESPONSES_ON_PUBLISH")
	t.Setenv("FORM_CACHE_TTL_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero cache ttl")
	}

	t.Setenv("FORM_CACHE_TTL_SECONDS", "60")
	t.Setenv("PURGE_DRAFT_RESPONSES_ON_PUBLISH", "sometimes")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparsable purge flag")
	}
}
