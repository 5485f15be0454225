// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrJWTSecretRequired is returned when JWT_SECRET is not set.
	ErrJWTSecretRequired = errors.New("config: JWT_SECRET is required")
	// ErrAdminEmailRequired is returned when ADMIN_EMAIL is not set.
	ErrAdminEmailRequired = errors.New("config: ADMIN_EMAIL is required")
	// ErrAdminPasswordRequired is returned when neither ADMIN_PASSWORD nor ADMIN_PASSWORD_HASH is set.
	ErrAdminPasswordRequired = errors.New("config: ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	// ErrMongoURIRequired is returned when the mongo store driver has no MONGO_URI.
	ErrMongoURIRequired = errors.New("config: MONGO_URI is required")
	// ErrUnknownStoreDriver is returned for a STORE_DRIVER other than mongo or memory.
	ErrUnknownStoreDriver = errors.New("config: STORE_DRIVER must be mongo or memory")
	// ErrUptimeRobotAPIKeyRequired is returned when UPTIMEROBOT_API_KEY is not set.
	ErrUptimeRobotAPIKeyRequired = errors.New("config: UPTIMEROBOT_API_KEY is required")
	// ErrBackupDirRequired is returned when BACKUP_DIR is empty.
	ErrBackupDirRequired = errors.New("config: BACKUP_DIR is required")
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Logging holds the logger settings shared by every binary.
type Logging struct {
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Store selects and locates the job document store.
type Store struct {
	Driver          string `env:"STORE_DRIVER, default=mongo" json:"store_driver"`
	MongoURI        string `env:"MONGO_URI" json:"-"` // May embed credentials
	MongoDB         string `env:"MONGO_DB, default=job-portal" json:"mongo_db"`
	MongoCollection string `env:"MONGO_COLLECTION, default=jobs" json:"mongo_collection"`
}

// Validate checks the driver and its required settings.
func (s *Store) Validate() error {
	switch s.Driver {
	case DriverMongo:
		if s.MongoURI == "" {
			return ErrMongoURIRequired
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, s.Driver)
	}
	return nil
}

// S3 holds the optional object storage settings.
type S3 struct {
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PublicURL        string `env:"S3_PUBLIC_URL" json:"s3_public_url,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
}

// S3Enabled returns true if S3 configuration is provided.
func (s *S3) S3Enabled() bool {
	return s.S3Bucket != "" && s.S3Region != ""
}

// Config holds all configuration for the API server.
type Config struct {
	Logging
	Store
	S3

	// Server settings
	Port           int      `env:"PORT, default=5000" json:"port"`
	AppEnv         string   `env:"APP_ENV, default=production" json:"app_env"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Auth settings
	JWTSecret         string        `env:"JWT_SECRET" json:"-"` // Masked in JSON
	TokenTTL          time.Duration `env:"TOKEN_TTL, default=24h" json:"token_ttl"`
	AdminEmail        string        `env:"ADMIN_EMAIL" json:"admin_email"`
	AdminPassword     string        `env:"ADMIN_PASSWORD" json:"-"`      // Masked in JSON
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH" json:"-"` // Masked in JSON
	LoginRatePerMin   int           `env:"LOGIN_RATE_PER_MIN, default=10" json:"login_rate_per_min"`

	// Media settings
	MediaFolder    string `env:"MEDIA_FOLDER, default=job-ads" json:"media_folder"`
	MediaDir       string `env:"MEDIA_DIR, default=/tmp/jobportal/media" json:"media_dir"`
	MediaBaseURL   string `env:"MEDIA_BASE_URL" json:"media_base_url,omitempty"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES, default=5242880" json:"max_upload_bytes"`

	// Alert settings
	RedisURL     string `env:"REDIS_URL" json:"-"` // May embed credentials
	SMTPHost     string `env:"SMTP_HOST" json:"smtp_host,omitempty"`
	SMTPPort     int    `env:"SMTP_PORT, default=587" json:"smtp_port"`
	SMTPUsername string `env:"SMTP_USERNAME" json:"smtp_username,omitempty"`
	SMTPPassword string `env:"SMTP_PASSWORD" json:"-"` // Masked in JSON
	SMTPFrom     string `env:"SMTP_FROM" json:"smtp_from,omitempty"`

	// Tracing
	OTelCollectorURL string `env:"OTEL_COLLECTOR_URL" json:"otel_collector_url,omitempty"`
}

// IsDevelopment reports whether internal error details may be exposed.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// SMTPEnabled returns true if an SMTP relay is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if c.AdminEmail == "" {
		return ErrAdminEmailRequired
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return ErrAdminPasswordRequired
	}
	return c.Store.Validate()
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (l *Logging) NewLogger() *slog.Logger {
	level := parseLogLevel(l.LogLevel)

	var handler slog.Handler
	if strings.ToLower(l.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, AppEnv: %s, StoreDriver: %s, MongoDB: %s, MongoCollection: %s, AdminEmail: %s, TokenTTL: %s, S3Bucket: %s, S3Region: %s, MediaFolder: %s, RedisURL: %s, SMTPHost: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.AppEnv,
		c.Driver,
		c.MongoDB,
		c.MongoCollection,
		c.AdminEmail,
		c.TokenTTL,
		c.S3Bucket,
		c.S3Region,
		c.MediaFolder,
		mask(c.RedisURL),
		c.SMTPHost,
		c.LogFormat,
		c.LogLevel,
	)
}

// SeedConfig is the configuration of the seeding tool.
type SeedConfig struct {
	Logging
	Store
}

// LoadSeed reads the seeding tool configuration.
func LoadSeed() (*SeedConfig, error) {
	cfg := &SeedConfig{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BackupConfig is the configuration of the database backup tool.
type BackupConfig struct {
	Logging
	S3

	MongoURI      string `env:"MONGO_URI" json:"-"`
	MongoDB       string `env:"MONGO_DB, default=job-portal" json:"mongo_db"`
	BackupDir     string `env:"BACKUP_DIR, default=./backups" json:"backup_dir"`
	MongodumpPath string `env:"MONGODUMP_PATH, default=mongodump" json:"mongodump_path"`
	S3Prefix      string `env:"BACKUP_S3_PREFIX, default=backups" json:"backup_s3_prefix"`
}

// LoadBackup reads the backup tool configuration.
func LoadBackup() (*BackupConfig, error) {
	cfg := &BackupConfig{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.MongoURI == "" {
		return nil, ErrMongoURIRequired
	}
	if cfg.BackupDir == "" {
		return nil, ErrBackupDirRequired
	}
	return cfg, nil
}

// UptimeConfig is the configuration of the uptime monitor provisioning tool.
type UptimeConfig struct {
	Logging

	APIKey      string `env:"UPTIMEROBOT_API_KEY" json:"-"` // Masked in JSON
	BaseURL     string `env:"BASE_URL, default=http://localhost:5000" json:"base_url"`
	FrontendURL string `env:"FRONTEND_URL" json:"frontend_url,omitempty"`
}

// LoadUptime reads the uptime provisioning tool configuration.
func LoadUptime() (*UptimeConfig, error) {
	cfg := &UptimeConfig{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, ErrUptimeRobotAPIKeyRequired
	}
	return cfg, nil
}

// mask hides everything but the scheme of a connection string.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if scheme, _, ok := strings.Cut(s, "://"); ok {
		return scheme + "://***"
	}
	return "***"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
