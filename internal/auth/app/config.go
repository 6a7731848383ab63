package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/northquay/tokend/internal/auth/service"
	"github.com/northquay/tokend/pkg/cryptox"
	"github.com/northquay/tokend/pkg/jwtx"

	"github.com/joho/godotenv"
)

type Config struct {
	SecretKey string // Required: HS256 signing secret

	Issuer   string   // Optional: issuer claim stamped into tokens (default: tokend)
	Audience []string // Optional: audience values tokens must carry

	AuthHeader       string // Optional: header carrying the bearer token (default: Authorization)
	AuthHeaderPrefix string // Optional: scheme prefix in that header (default: JWT)

	AccessTTL          time.Duration // Optional: access token lifetime (default: 5m)
	RefreshTTL         time.Duration // Optional: refresh window from original issue (default: 7d)
	Leeway             time.Duration // Optional: clock-skew allowance on exp/nbf (default: 0)
	VerifyExpiration   bool          // Optional: enforce exp on verification (default: true)
	AllowRefresh       bool          // Optional: stamp orig_iat and permit refresh (default: true)
	RefreshMode        string        // Optional: refresh strategy (sliding, stored) (default: stored)
	RefreshTokenLength int           // Optional: opaque refresh token entropy in bytes (default: 32)

	StoreDriver  string // Optional: storage backend (sqlite, postgres) (default: sqlite)
	DatabaseFile string // Optional: path to SQLite database file (default: ./tokend.db)
	DatabaseURL  string // Optional: postgres DSN, required when StoreDriver is postgres

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Stale refresh record sweep interval (default: 1h)
}

var errMissingSecret = errors.New("TOKEND_SECRET_KEY is required")

// LoadConfig reads configuration from the environment, after loading a
// .env file if one is present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		SecretKey: os.Getenv("TOKEND_SECRET_KEY"),

		Issuer:   getEnvOrDefault("TOKEND_ISSUER", "tokend"),
		Audience: getEnvFields("TOKEND_AUDIENCE"),

		AuthHeader:       getEnvOrDefault("TOKEND_AUTH_HEADER", "Authorization"),
		AuthHeaderPrefix: getEnvOrDefault("TOKEND_AUTH_HEADER_PREFIX", "JWT"),

		AccessTTL:          getEnvDurationOrDefault("TOKEND_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:         getEnvDurationOrDefault("TOKEND_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		Leeway:             getEnvDurationOrDefault("TOKEND_LEEWAY", 0),
		VerifyExpiration:   getEnvBoolOrDefault("TOKEND_VERIFY_EXPIRATION", true),
		AllowRefresh:       getEnvBoolOrDefault("TOKEND_ALLOW_REFRESH", true),
		RefreshMode:        getEnvOrDefault("TOKEND_REFRESH_MODE", string(service.RefreshModeStored)),
		RefreshTokenLength: getEnvIntOrDefault("TOKEND_REFRESH_TOKEN_LENGTH", cryptox.TokenSize256),

		StoreDriver:  getEnvOrDefault("TOKEND_STORE_DRIVER", "sqlite"),
		DatabaseFile: getEnvOrDefault("TOKEND_DATABASE_FILE", "tokend.db"),
		DatabaseURL:  os.Getenv("TOKEND_DATABASE_URL"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if cfg.SecretKey == "" {
		return Config{}, errMissingSecret
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvFields reads a space-delimited list from the environment.
func getEnvFields(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	return strings.Fields(value)
}
