package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8090" {
		t.Fatalf("expected default port 8090, got %s", cfg.Port)
	}
	if cfg.StoreType != "badger" {
		t.Fatalf("expected default store badger, got %s", cfg.StoreType)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Fatalf("expected 24h cache TTL, got %s", cfg.CacheTTL)
	}
	if !cfg.AutoSync {
		t.Fatalf("expected auto sync enabled by default")
	}
	if cfg.ProbeInterval != 0 {
		t.Fatalf("expected probe disabled by default, got %s", cfg.ProbeInterval)
	}
	if cfg.StorageQuotaBytes != defaultStorageQuotaBytes {
		t.Fatalf("expected default quota, got %d", cfg.StorageQuotaBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FP_STORE", "Postgres")
	t.Setenv("FP_CACHE_TTL", "1h")
	t.Setenv("FP_AUTO_SYNC", "false")
	t.Setenv("FP_API_BASE_URL", "https://staging.fineprint.ai/")
	t.Setenv("ENV", "staging")

	cfg := Load()

	if cfg.StoreType != "postgres" {
		t.Fatalf("expected postgres store, got %s", cfg.StoreType)
	}
	if cfg.CacheTTL != time.Hour {
		t.Fatalf("expected 1h TTL, got %s", cfg.CacheTTL)
	}
	if cfg.AutoSync {
		t.Fatalf("expected auto sync disabled")
	}
	if cfg.APIBaseURL != "https://staging.fineprint.ai" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
	}
	if cfg.Env != "staging" {
		t.Fatalf("expected staging env, got %s", cfg.Env)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("FP_CACHE_TTL", "not-a-duration")
	t.Setenv("FP_STORAGE_QUOTA_BYTES", "-5")

	cfg := Load()

	if cfg.CacheTTL != 24*time.Hour {
		t.Fatalf("expected fallback to default TTL, got %s", cfg.CacheTTL)
	}
	if cfg.StorageQuotaBytes != defaultStorageQuotaBytes {
		t.Fatalf("expected fallback to default quota, got %d", cfg.StorageQuotaBytes)
	}
}
