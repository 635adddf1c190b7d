// Package config provides configuration management for the DeckTutor tools
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/alexbotov/decktutor/pkg/decktutor"
)

// Config holds all configuration for the CLI and the sandbox
type Config struct {
	Client   ClientConfig
	Sandbox  SandboxConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
}

// ClientConfig holds webservice client configuration
type ClientConfig struct {
	Endpoint      string
	Game          string
	Timeout       time.Duration
	SessionFile   string
	NameCacheSize int
}

// SandboxConfig holds the local webservice emulation configuration
type SandboxConfig struct {
	Addr         string
	Prefix       string
	CatalogFile  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// AuthConfig holds sandbox authentication configuration
type AuthConfig struct {
	JWTSecret       string
	TokenExpiry     time.Duration
	RequireCaptcha  bool
	MinPasswordSize int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug|info|warn|error
	Format string // console|json
}

// Load loads configuration from environment with defaults
func Load() *Config {
	return &Config{
		Client: ClientConfig{
			Endpoint:      getEnv("DECKTUTOR_ENDPOINT", decktutor.DefaultEndpoint),
			Game:          getEnv("DECKTUTOR_GAME", string(decktutor.DefaultGame)),
			Timeout:       getEnvDuration("DECKTUTOR_TIMEOUT", 30*time.Second),
			SessionFile:   getEnv("DECKTUTOR_SESSION_FILE", defaultSessionFile()),
			NameCacheSize: getEnvInt("DECKTUTOR_NAME_CACHE", 256),
		},
		Sandbox: SandboxConfig{
			Addr:         getEnv("DECKTUTOR_SANDBOX_ADDR", ":8080"),
			Prefix:       getEnv("DECKTUTOR_SANDBOX_PREFIX", "/ws-1.2/app/v1"),
			CatalogFile:  getEnv("DECKTUTOR_CATALOG_FILE", ""),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: getEnv("DECKTUTOR_DB_DRIVER", "sqlite"),
			DSN:    getEnv("DECKTUTOR_DB_DSN", "file:decktutor.db"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("DECKTUTOR_JWT_SECRET", "decktutor-dev-secret-change-in-production"),
			TokenExpiry:     getEnvDuration("DECKTUTOR_TOKEN_EXPIRY", 24*time.Hour),
			RequireCaptcha:  getEnvBool("DECKTUTOR_REQUIRE_CAPTCHA", true),
			MinPasswordSize: 8,
		},
		Log: LogConfig{
			Level:  getEnv("DECKTUTOR_LOG_LEVEL", "info"),
			Format: getEnv("DECKTUTOR_LOG_FORMAT", "console"),
		},
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".decktutor-session.yaml"
	}
	return dir + "/decktutor/session.yaml"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
