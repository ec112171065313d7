package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wozniakbe/nutriscan/internal/foodfacts"
)

type Config struct {
	ServerPort         string
	CacheBackend       string
	CacheFile          string
	CacheTableName     string
	DatabaseURL        string
	PreferencesBackend string
	DynamoEndpoint     string
	DynamoTableName    string
	AWSRegion          string
	FoodFactsBaseURL   string
	FoodFactsTimeout   time.Duration
	UserAgent          string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowOrigin    string
	LogLevel           slog.Level
	LogFile            string
	DevBypassAuth      bool
	MaxUploadBytes     int64
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	timeout, err := envDuration("FOODFACTS_TIMEOUT", foodfacts.DefaultTimeout)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := envInt64("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServerPort:         envOrDefault("SERVER_PORT", "8080"),
		CacheBackend:       strings.ToLower(envOrDefault("CACHE_BACKEND", "file")),
		CacheFile:          envOrDefault("CACHE_FILE", "nutrition_db.json"),
		CacheTableName:     envOrDefault("CACHE_TABLE_NAME", "nutrition-cache"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PreferencesBackend: strings.ToLower(envOrDefault("PREFERENCES_BACKEND", "memory")),
		DynamoEndpoint:     os.Getenv("DYNAMODB_ENDPOINT"),
		DynamoTableName:    envOrDefault("DYNAMODB_TABLE_NAME", "user-thresholds"),
		AWSRegion:          envOrDefault("AWS_REGION", "us-east-1"),
		FoodFactsBaseURL:   envOrDefault("FOODFACTS_BASE_URL", foodfacts.DefaultBaseURL),
		FoodFactsTimeout:   timeout,
		UserAgent:          envOrDefault("FOODFACTS_USER_AGENT", "nutriscan/"+version),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          os.Getenv("JWT_ISSUER"),
		CORSAllowOrigin:    envOrDefault("CORS_ALLOW_ORIGIN", "*"),
		LogLevel:           parseLogLevel(os.Getenv("LOG_LEVEL")),
		LogFile:            os.Getenv("LOG_FILE"),
		DevBypassAuth:      strings.EqualFold(os.Getenv("DEV_BYPASS_AUTH"), "true"),
		MaxUploadBytes:     maxUpload,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.CacheBackend {
	case "file", "memory", "dynamodb":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when CACHE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	switch c.PreferencesBackend {
	case "memory", "dynamodb":
	default:
		return fmt.Errorf("unknown PREFERENCES_BACKEND %q", c.PreferencesBackend)
	}
	return nil
}

// validateServer checks the settings only the HTTP server needs.
func (c Config) validateServer() error {
	if c.JWTSecret == "" && !c.DevBypassAuth {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
