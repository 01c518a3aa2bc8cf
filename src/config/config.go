package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Remote holdings API. When HoldingsAPIURL is empty the local SQLite store is used.
	HoldingsAPIURL    string
	HoldingsAPIToken  string
	HTTPClientTimeout time.Duration

	// Price refresh workflow
	RefreshBatchSize       int
	RefreshConcurrency     int
	RefreshRequestInterval time.Duration

	// View model cache
	ViewCacheExpiration time.Duration
	ViewCacheCleanup    time.Duration

	// Tags seeded as system (undeletable) tags in the local store
	SystemTags []string

	// HTTP rate limiter
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file
// into Cfg.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = FromEnv()

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, RemoteAPI=%t",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.HoldingsAPIURL != "")
	log.Printf("System tags loaded: %d", len(Cfg.SystemTags))
}

// FromEnv builds an AppConfig from the current process environment.
func FromEnv() *AppConfig {
	cfg := &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./holdings.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		HoldingsAPIURL:    strings.TrimRight(getEnv("HOLDINGS_API_URL", ""), "/"),
		HoldingsAPIToken:  getEnv("HOLDINGS_API_TOKEN", ""),
		HTTPClientTimeout: getEnvAsDuration("HTTP_CLIENT_TIMEOUT", 20*time.Second),

		RefreshBatchSize:       getEnvAsInt("REFRESH_BATCH_SIZE", 10),
		RefreshConcurrency:     getEnvAsInt("REFRESH_CONCURRENCY", 2),
		RefreshRequestInterval: getEnvAsDuration("REFRESH_REQUEST_INTERVAL", 250*time.Millisecond),

		ViewCacheExpiration: getEnvAsDuration("VIEW_CACHE_EXPIRATION", 15*time.Minute),
		ViewCacheCleanup:    getEnvAsDuration("VIEW_CACHE_CLEANUP", 30*time.Minute),

		SystemTags: getList("SYSTEM_TAGS", "Core,Dividend,Growth"),

		RateLimitInterval: getEnvAsDuration("RATE_LIMIT_INTERVAL", 100*time.Millisecond),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 30),
	}

	if cfg.RefreshBatchSize < 1 {
		log.Printf("WARNING: REFRESH_BATCH_SIZE must be positive, using 1")
		cfg.RefreshBatchSize = 1
	}
	if cfg.RefreshConcurrency < 1 {
		log.Printf("WARNING: REFRESH_CONCURRENCY must be positive, using 1")
		cfg.RefreshConcurrency = 1
	}
	return cfg
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getList retrieves and parses a comma-separated list, dropping empty items.
func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
