package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public base URL, used in the embed snippet
	BaseURL string

	// bcrypt hash of the admin API bearer token
	AdminTokenHash string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	LocalStoragePath string
	LocalStorageURL  string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
	R2Endpoint        string // other S3-compatible services

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Forward geocoding (Nominatim compatible)
	GeocoderURL          string
	GeocoderUserAgent    string
	GeocoderCountryCodes string
	GeocoderMinInterval  time.Duration
	GeocoderTimeout      time.Duration

	// Optional redis cache for geocoding results. Empty disables it.
	RedisURL        string
	GeocodeCacheTTL time.Duration

	// Driving routes (OSRM compatible)
	RouterURL     string
	RouterTimeout time.Duration

	// Import policy
	HomeCountry      string
	ImportMaxRows    int
	ImportMaxBytes   int64
	ImportSessionTTL time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL:        strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 1),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 30*time.Minute),

		GeocoderURL:          getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:    getEnv("GEOCODER_USER_AGENT", "Storefinder/1.0"),
		GeocoderCountryCodes: getEnv("GEOCODER_COUNTRY_CODES", "ch,de,at,fr,it"),
		GeocoderMinInterval:  getEnvDuration("GEOCODER_MIN_INTERVAL", time.Second),
		GeocoderTimeout:      getEnvDuration("GEOCODER_TIMEOUT", 10*time.Second),

		RedisURL:        getEnv("REDIS_URL", ""),
		GeocodeCacheTTL: getEnvDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour),

		RouterURL:     getEnv("ROUTER_URL", "https://router.project-osrm.org"),
		RouterTimeout: getEnvDuration("ROUTER_TIMEOUT", 15*time.Second),

		HomeCountry:      strings.ToUpper(getEnv("HOME_COUNTRY", "CH")),
		ImportMaxRows:    getEnvInt("IMPORT_MAX_ROWS", 1000),
		ImportMaxBytes:   int64(getEnvInt("IMPORT_MAX_BYTES", 5*1024*1024)),
		ImportSessionTTL: getEnvDuration("IMPORT_SESSION_TTL", 2*time.Hour),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate reports every invalid setting at once.
func (c *Config) validate() error {
	var errs []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	require(c.DatabaseUrl != "", "DATABASE_URL is required")
	require(c.Env == "development" || c.AdminTokenHash != "", "ADMIN_TOKEN_HASH is required outside development")

	switch c.StorageProvider {
	case "local":
	case "r2":
		require(c.R2AccountID != "" || c.R2Endpoint != "", "R2_ACCOUNT_ID or R2_ENDPOINT is required when STORAGE_PROVIDER is 'r2'")
		require(c.R2AccessKeyID != "", "R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		require(c.R2SecretAccessKey != "", "R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		require(c.R2BucketName != "", "R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
	default:
		errs = append(errs, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider))
	}

	require(len(c.HomeCountry) == 2, "HOME_COUNTRY must be a two letter country code, got: %s", c.HomeCountry)
	require(c.ImportMaxRows >= 1 && c.ImportMaxRows <= 1000, "IMPORT_MAX_ROWS must be between 1 and 1000, got: %d", c.ImportMaxRows)
	require(c.ImportMaxBytes > 0, "IMPORT_MAX_BYTES must be positive")
	// Nominatim's usage policy allows one request per second
	require(c.GeocoderMinInterval >= 0, "GEOCODER_MIN_INTERVAL must not be negative")
	require(c.GeocoderUserAgent != "", "GEOCODER_USER_AGENT is required by the Nominatim usage policy")

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
