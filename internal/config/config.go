// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links and CORS origins.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Storage holds object storage (S3/MinIO) settings.
	Storage StorageConfig

	// Upload holds posture image upload settings.
	Upload UploadConfig

	// Auth holds API authentication settings.
	Auth AuthConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "formtrack").
	User string

	// Password is the MariaDB password (default: "formtrack").
	Password string

	// Name is the database name (default: "formtrack").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string

	// OptionTTL is how long cached option lists (customers, trainers)
	// stay fresh before a refresh is triggered.
	OptionTTL time.Duration
}

// StorageConfig holds S3-compatible object storage parameters. MinIO is
// used in development; any S3-compatible endpoint works in production.
type StorageConfig struct {
	// Endpoint is the S3-compatible base endpoint (e.g., "http://localhost:9000").
	Endpoint string

	// Region is the S3 region (required by the SDK even for MinIO).
	Region string

	// Bucket is the bucket holding posture images.
	Bucket string

	// AccessKey and SecretKey are the static credentials.
	AccessKey string
	SecretKey string

	// PublicBaseURL is the base URL for unsigned public object access.
	// Used as the fallback when presigning fails. Empty disables the fallback.
	PublicBaseURL string

	// DefaultExpiry is the signed URL lifetime used when a caller does
	// not supply one (transient upload previews).
	DefaultExpiry time.Duration

	// MaxExpiry caps caller-supplied signed URL lifetimes (gallery views
	// ask for up to 7 days).
	MaxExpiry time.Duration
}

// UploadConfig holds posture image upload settings.
type UploadConfig struct {
	// MaxSize is the maximum upload file size in bytes.
	MaxSize int64
}

// AuthConfig holds API authentication settings. Session management proper is
// handled by an external identity service; this service only verifies the
// bearer tokens it is handed.
type AuthConfig struct {
	// StaticToken, when set, is accepted as a valid bearer token. Intended
	// for development and service-to-service calls behind the gateway.
	StaticToken string
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "formtrack"),
			Password:        getEnv("DB_PASSWORD", "formtrack"),
			Name:            getEnv("DB_NAME", "formtrack"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			OptionTTL: getEnvDuration("OPTION_CACHE_TTL", 5*time.Minute),
		},

		Storage: StorageConfig{
			Endpoint:      getEnv("S3_ENDPOINT", "http://localhost:9000"),
			Region:        getEnv("S3_REGION", "us-east-1"),
			Bucket:        getEnv("S3_BUCKET", "posture-images"),
			AccessKey:     getEnv("S3_ACCESS_KEY", "formtrack"),
			SecretKey:     getEnv("S3_SECRET_KEY", "formtrack"),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
			DefaultExpiry: getEnvDuration("SIGNED_URL_DEFAULT_EXPIRY", time.Hour),
			MaxExpiry:     getEnvDuration("SIGNED_URL_MAX_EXPIRY", 7*24*time.Hour),
		},

		Upload: UploadConfig{
			MaxSize: getEnvInt64("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB
		},

		Auth: AuthConfig{
			StaticToken: getEnv("API_TOKEN", ""),
		},
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Auth.StaticToken == "" {
			return nil, fmt.Errorf("API_TOKEN is required in production")
		}
		if cfg.Storage.AccessKey == "formtrack" || cfg.Storage.SecretKey == "formtrack" {
			return nil, fmt.Errorf("S3_ACCESS_KEY/S3_SECRET_KEY must be set in production")
		}
	}

	// Provide a dev-only token so local dev works without .env.
	if cfg.Auth.StaticToken == "" {
		cfg.Auth.StaticToken = "dev-token-do-not-use-in-production"
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvInt64 reads an int64 env var or returns the default.
func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "168h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
