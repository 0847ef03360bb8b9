package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr                 string
	Environment          string
	APIBaseURL           string
	APITimeout           time.Duration
	DatabaseURL          string
	FrontendDir          string
	DisplayTimezone      string
	MaxBodyBytes         int64
	RateLimitPerMinute   int
	CacheEvaluationTTL   time.Duration
	CacheCollectionTTL   time.Duration
	CacheReferenceTTL    time.Duration
	JournalSweepInterval time.Duration
	JournalRetention     time.Duration
	MetricsEnabled       bool
	RunMigrations        bool
}

func Load() Config {
	return Config{
		Addr:                 getEnv("APP_ADDR", ":8080"),
		Environment:          getEnv("APP_ENV", "development"),
		APIBaseURL:           getEnv("API_BASE_URL", ""),
		APITimeout:           getEnvDuration("API_TIMEOUT", 15*time.Second),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		FrontendDir:          getEnv("FRONTEND_DIR", "frontend/dist"),
		DisplayTimezone:      getEnv("DISPLAY_TIMEZONE", "UTC"),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CacheEvaluationTTL:   getEnvDuration("CACHE_EVALUATION_TTL", 2*time.Minute),
		CacheCollectionTTL:   getEnvDuration("CACHE_COLLECTION_TTL", 5*time.Minute),
		CacheReferenceTTL:    getEnvDuration("CACHE_REFERENCE_TTL", 10*time.Minute),
		JournalSweepInterval: getEnvDuration("JOURNAL_SWEEP_INTERVAL", time.Hour),
		JournalRetention:     getEnvDuration("JOURNAL_RETENTION", 30*24*time.Hour),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Location resolves DISPLAY_TIMEZONE, the zone activity days are grouped in.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.DisplayTimezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// JournalEnabled reports whether transitions are journaled to Postgres.
func (c Config) JournalEnabled() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL")
	}
	if c.Environment == "production" && parsed.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL must use https in production")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("DISPLAY_TIMEZONE is invalid: %w", err)
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	for name, ttl := range map[string]time.Duration{
		"CACHE_EVALUATION_TTL": c.CacheEvaluationTTL,
		"CACHE_COLLECTION_TTL": c.CacheCollectionTTL,
		"CACHE_REFERENCE_TTL":  c.CacheReferenceTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.JournalEnabled() && c.JournalSweepInterval < 0 {
		return fmt.Errorf("JOURNAL_SWEEP_INTERVAL must not be negative")
	}
	return nil
}
