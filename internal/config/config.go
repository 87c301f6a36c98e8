package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Blob      BlobConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
	Jobs      JobsConfig
	Export    ExportConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host        string
	Port        string
	Namespace   string
	Database    string
	User        string
	Password    string
	AutoMigrate bool
	Seed        bool // load permissions, built-in roles and event lookups at startup
}

// BlobConfig selects where file content is stored
type BlobConfig struct {
	Driver          string // fs, s3 or memory
	FSRoot          string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PathStyle     bool
	S3AccessKeyID   string
	S3SecretKey     string
	MaxContentBytes int64
	PresignExpiry   time.Duration
}

// CacheConfig holds the option and principal cache settings. An empty
// RedisAddr keeps the cache in process.
type CacheConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	Namespace      string
	OptionsTTL     time.Duration
	PrincipalTTL   time.Duration
	IdempotencyTTL time.Duration
}

// RateLimitConfig holds per-caller request limits
type RateLimitConfig struct {
	Rate   int
	Window time.Duration
	Burst  int
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	FilePurgeEnabled   bool
	FilePurgeInterval  time.Duration
	FilePurgeRetention time.Duration
}

// ExportConfig holds defaults for cmd/export
type ExportConfig struct {
	Dialect string
	DSN     string
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "8000"),
			Namespace:   getEnv("DB_NAMESPACE", "cafemarche"),
			Database:    getEnv("DB_DATABASE", "main"),
			User:        getEnv("DB_USER", "root"),
			Password:    getEnv("DB_PASSWORD", "root"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),
			Seed:        getBoolEnv("DB_SEED", true),
		},
		Blob: BlobConfig{
			Driver:          getEnv("BLOB_DRIVER", "fs"),
			FSRoot:          getEnv("BLOB_FS_ROOT", "./data/files"),
			S3Bucket:        getEnv("BLOB_S3_BUCKET", ""),
			S3Region:        getEnv("BLOB_S3_REGION", "us-east-1"),
			S3Endpoint:      getEnv("BLOB_S3_ENDPOINT", ""),
			S3PathStyle:     getBoolEnv("BLOB_S3_PATH_STYLE", false),
			S3AccessKeyID:   getEnv("BLOB_S3_ACCESS_KEY_ID", ""),
			S3SecretKey:     getEnv("BLOB_S3_SECRET_ACCESS_KEY", ""),
			MaxContentBytes: getInt64Env("BLOB_MAX_CONTENT_BYTES", 64<<20),
			PresignExpiry:   getDurationEnv("BLOB_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Cache: CacheConfig{
			RedisAddr:      getEnv("CACHE_REDIS_ADDR", ""),
			RedisPassword:  getEnv("CACHE_REDIS_PASSWORD", ""),
			RedisDB:        getIntEnv("CACHE_REDIS_DB", 0),
			Namespace:      getEnv("CACHE_NAMESPACE", "cafemarche"),
			OptionsTTL:     getDurationEnv("CACHE_OPTIONS_TTL", 5*time.Minute),
			PrincipalTTL:   getDurationEnv("CACHE_PRINCIPAL_TTL", time.Minute),
			IdempotencyTTL: getDurationEnv("CACHE_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Rate:   getIntEnv("RATE_LIMIT_RATE", 100),
			Window: getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			Burst:  getIntEnv("RATE_LIMIT_BURST", 20),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Jobs: JobsConfig{
			FilePurgeEnabled:   getBoolEnv("JOBS_FILE_PURGE_ENABLED", true),
			FilePurgeInterval:  getDurationEnv("JOBS_FILE_PURGE_INTERVAL", time.Hour),
			FilePurgeRetention: getDurationEnv("JOBS_FILE_PURGE_RETENTION", 30*24*time.Hour),
		},
		Export: ExportConfig{
			Dialect: getEnv("EXPORT_DIALECT", "sqlite"),
			DSN:     getEnv("EXPORT_DSN", "file:cafemarche-export.db"),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	if err := c.Blob.Validate(c.IsProduction()); err != nil {
		errs = append(errs, fmt.Errorf("blob: %w", err))
	}

	// Cache validation
	if c.Cache.OptionsTTL <= 0 || c.Cache.PrincipalTTL <= 0 {
		errs = append(errs, errors.New("CACHE_OPTIONS_TTL and CACHE_PRINCIPAL_TTL must be positive"))
	}

	// Rate limit validation
	if c.RateLimit.Rate <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RATE and RATE_LIMIT_WINDOW must be positive"))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("METRICS_PATH must start with '/', got '%s'", c.Metrics.Path))
	}

	if c.Jobs.FilePurgeEnabled && c.Jobs.FilePurgeInterval <= 0 {
		errs = append(errs, errors.New("JOBS_FILE_PURGE_INTERVAL must be positive"))
	}
	if c.Jobs.FilePurgeRetention < 0 {
		errs = append(errs, errors.New("JOBS_FILE_PURGE_RETENTION must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the settings of the selected driver. The in-memory driver
// is refused in production since it loses content on restart.
func (b BlobConfig) Validate(production bool) error {
	var missing []string
	switch b.Driver {
	case "fs":
		if b.FSRoot == "" {
			missing = append(missing, "BLOB_FS_ROOT")
		}
	case "s3":
		if b.S3Bucket == "" {
			missing = append(missing, "BLOB_S3_BUCKET")
		}
		if b.S3Region == "" {
			missing = append(missing, "BLOB_S3_REGION")
		}
	case "memory":
		if production {
			return errors.New("BLOB_DRIVER 'memory' is not allowed in production")
		}
	default:
		return fmt.Errorf("BLOB_DRIVER must be 'fs', 's3', or 'memory', got '%s'", b.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if b.MaxContentBytes <= 0 {
		return errors.New("BLOB_MAX_CONTENT_BYTES must be positive")
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
