package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported store backends.
const (
	BackendCSV      = "csv"
	BackendXLSX     = "xlsx"
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Tabular store configuration
	Store StoreConfig

	// Database configuration (postgres backend)
	Database DatabaseConfig

	// Google Sheets configuration (sheets backend)
	Sheets SheetsConfig

	// Read cache configuration
	Cache CacheConfig

	// Write protection configuration
	Auth AuthConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// WebSocket configuration
	WebSocket WebSocketConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// StoreConfig selects and locates the tabular store
type StoreConfig struct {
	Backend string // csv, xlsx, sheets, postgres, sqlite
	Path    string // file for csv, xlsx and sqlite
	Sheet   string // worksheet for xlsx and sheets
	Timeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// SheetsConfig holds Google Sheets configuration
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
}

// CacheConfig holds Redis read cache configuration
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
	Prefix   string
}

// AuthConfig holds write protection configuration
type AuthConfig struct {
	Enabled      bool
	JWTSecret    string
	PasswordHash string // bcrypt hash of the shared operator password
	TokenTTL     time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	AuthRPS           float64 // Stricter limit for the token endpoint
	AuthBurst         int
	TrustProxy        bool // take the client address from X-Forwarded-For / X-Real-IP
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Timezone    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:     getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{}),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendCSV)),
			Path:    getEnvOrDefault("STORE_PATH", "data/ticket_tally.csv"),
			Sheet:   getEnvOrDefault("STORE_SHEET", "Sheet1"),
			Timeout: getDurationOrDefault("STORE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getBoolOrDefault("DB_AUTO_MIGRATE", true),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("SHEETS_SPREADSHEET_ID"),
			CredentialsFile: os.Getenv("SHEETS_CREDENTIALS_FILE"),
		},
		Cache: CacheConfig{
			Enabled:  getBoolOrDefault("CACHE_ENABLED", false),
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      getDurationOrDefault("CACHE_TTL", 5*time.Minute),
			Prefix:   getEnvOrDefault("CACHE_PREFIX", "ticket-tally"),
		},
		Auth: AuthConfig{
			Enabled:      getBoolOrDefault("AUTH_ENABLED", false),
			JWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
			PasswordHash: os.Getenv("AUTH_PASSWORD_HASH"),
			TokenTTL:     getDurationOrDefault("AUTH_TOKEN_TTL", 12*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
			AuthRPS:           getFloatOrDefault("RATE_LIMIT_AUTH_RPS", 1),
			AuthBurst:         getIntOrDefault("RATE_LIMIT_AUTH_BURST", 5),
			TrustProxy:        getBoolOrDefault("RATE_LIMIT_TRUST_PROXY", false),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  getStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:  getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "ticket-tally"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
			Timezone:    getEnvOrDefault("APP_TIMEZONE", "UTC"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Backend-specific required fields
	switch c.Store.Backend {
	case BackendCSV, BackendXLSX, BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, "STORE_PATH is required for the "+c.Store.Backend+" backend")
		}
	case BackendSheets:
		if c.Sheets.SpreadsheetID == "" {
			errs = append(errs, "SHEETS_SPREADSHEET_ID is required for the sheets backend")
		}
		if c.Sheets.CredentialsFile == "" {
			errs = append(errs, "SHEETS_CREDENTIALS_FILE is required for the sheets backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND %q is not one of csv, xlsx, sheets, postgres, sqlite", c.Store.Backend))
	}

	if c.Store.Sheet == "" {
		errs = append(errs, "STORE_SHEET cannot be empty")
	}

	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		errs = append(errs, "REDIS_URL is required when CACHE_ENABLED is true")
	}

	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			errs = append(errs, "AUTH_JWT_SECRET is required when AUTH_ENABLED is true")
		}
		if c.Auth.PasswordHash == "" {
			errs = append(errs, "AUTH_PASSWORD_HASH is required when AUTH_ENABLED is true")
		}
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("APP_TIMEZONE %q is not a valid time zone", c.App.Timezone))
	}

	// Security validations
	if c.App.Environment == "production" {
		if c.Auth.Enabled && len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, "AUTH_JWT_SECRET must be at least 32 characters in production")
		}

		if len(c.WebSocket.AllowedOrigins) == 0 {
			errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
		}
	}

	// Logical validations
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// Location returns the time zone that defines "today".
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Store: %s, DB: %s, Cache: %v, Auth: %v, RateLimit: %v, Environment: %s}",
		c.Server.Port,
		c.Store.Backend,
		redactURL(c.Database.URL),
		c.Cache.Enabled,
		c.Auth.Enabled,
		c.RateLimit.Enabled,
		c.App.Environment,
	)
}

// redactURL redacts credentials from a connection URL
func redactURL(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.Index(url, "@"); idx > 0 {
		return "[REDACTED]" + url[idx:]
	}
	return "[REDACTED]"
}
