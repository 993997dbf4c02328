package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"MONGO_URI", "DB_NAME", "JWT_SECRET", "ACCESS_TOKEN_TTL", "PORT", "DRAFT_TTL", "LOW_STOCK_THRESHOLD", "DEFAULT_PRICE_LEVEL", "METRICS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.DBName != "pos" {
		t.Fatalf("expected default db name pos, got %q", cfg.DBName)
	}
	if cfg.AccessTokenTTL != 20*time.Minute {
		t.Fatalf("expected 20m access ttl, got %s", cfg.AccessTokenTTL)
	}
	if cfg.DraftTTL != 24*time.Hour {
		t.Fatalf("expected 24h draft ttl, got %s", cfg.DraftTTL)
	}
	if cfg.Port != "8080" || cfg.LowStockThreshold != 5 || cfg.DefaultPriceLevel != 1 || !cfg.MetricsEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error without MONGO_URI and JWT_SECRET")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", ":9090")
	t.Setenv("DRAFT_TTL", "6")
	t.Setenv("LOW_STOCK_THRESHOLD", "0")
	t.Setenv("DEFAULT_PRICE_LEVEL", "2")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-number")

	cfg := FromEnv()
	if cfg.Port != "9090" {
		t.Fatalf("expected leading colon stripped, got %q", cfg.Port)
	}
	if cfg.DraftTTL != 6*time.Hour {
		t.Fatalf("expected 6h draft ttl, got %s", cfg.DraftTTL)
	}
	if cfg.LowStockThreshold != 0 || cfg.DefaultPriceLevel != 2 || cfg.MetricsEnabled {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 20*time.Minute {
		t.Fatalf("expected invalid ttl to fall back to default, got %s", cfg.AccessTokenTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
