package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://hr.local/api")
	t.Setenv("API_TIMEOUT", "bogus")
	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.APITimeout != 15*time.Second {
		t.Fatalf("expected fallback timeout, got %v", cfg.APITimeout)
	}
	if cfg.CacheEvaluationTTL != 2*time.Minute || cfg.CacheReferenceTTL != 10*time.Minute {
		t.Fatalf("unexpected cache windows %v %v", cfg.CacheEvaluationTTL, cfg.CacheReferenceTTL)
	}
	if cfg.JournalEnabled() {
		t.Fatal("expected the journal off without DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidateRequiresAPIBaseURL(t *testing.T) {
	cfg := Load()
	cfg.APIBaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error without API_BASE_URL")
	}
	cfg.APIBaseURL = "hr.local"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a relative URL")
	}
}

func TestValidateProductionNeedsHTTPS(t *testing.T) {
	cfg := Load()
	cfg.Environment = "production"
	cfg.APIBaseURL = "http://hr.example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected https to be required in production")
	}
	cfg.APIBaseURL = "https://hr.example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{DisplayTimezone: "Asia/Riyadh"}
	loc, err := cfg.Location()
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if loc.String() != "Asia/Riyadh" {
		t.Fatalf("unexpected location %q", loc)
	}
	cfg.DisplayTimezone = "Not/AZone"
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected an error for an unknown zone")
	}
}
