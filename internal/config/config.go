package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the SceneSwitch server and CLI.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Batch    BatchConfig
	Staging  StagingConfig
	Upload   UploadConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	RequestsPerMin int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL         string
	ProgressTTL time.Duration
}

// ProviderConfig selects and configures the remote transformation provider.
// The API token is only ever read from the environment.
type ProviderConfig struct {
	Kind                string
	BaseURL             string
	APIToken            string
	Timeout             time.Duration
	MockPollsToComplete int
}

// BatchConfig is the orchestrator policy.
type BatchConfig struct {
	MaxAttempts      int
	PollInterval     time.Duration
	ConcurrencyLimit int
	MinAssets        int
	CatalogFile      string
}

type StagingConfig struct {
	Kind            string
	LocalDir        string
	PublicBaseURL   string
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	PresignTTL      time.Duration
	MaxAge          time.Duration
	CleanupSchedule string
}

type UploadConfig struct {
	Dir          string
	MaxBytes     int64
	AllowedTypes []string
}

var validProviders = map[string]bool{
	"http": true,
	"mock": true,
}

var validStagers = map[string]bool{
	"local": true,
	"s3":    true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := loadFromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStandalone reads the same variables as Load but skips database and cache requirements.
// Used by the CLI, which runs a batch in-process without persistence.
func LoadStandalone() (*Config, error) {
	cfg := loadFromEnv()
	if err := cfg.validateCore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           envInt("SCENESWITCH_PORT", 8080),
			Env:            envString("SCENESWITCH_ENV", "development"),
			RequestsPerMin: envInt("SCENESWITCH_REQUESTS_PER_MIN", 60),
			AllowedOrigins: envList("SCENESWITCH_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:         os.Getenv("REDIS_URL"),
			ProgressTTL: envDuration("REDIS_PROGRESS_TTL", 30*time.Minute),
		},
		Provider: ProviderConfig{
			Kind:                envString("PROVIDER", "http"),
			BaseURL:             os.Getenv("PROVIDER_BASE_URL"),
			APIToken:            os.Getenv("PROVIDER_API_TOKEN"),
			Timeout:             envDuration("PROVIDER_TIMEOUT", 30*time.Second),
			MockPollsToComplete: envInt("MOCK_POLLS_TO_COMPLETE", 3),
		},
		Batch: BatchConfig{
			MaxAttempts:      envInt("BATCH_MAX_ATTEMPTS", 30),
			PollInterval:     envDuration("BATCH_POLL_INTERVAL", 2*time.Second),
			ConcurrencyLimit: envInt("BATCH_CONCURRENCY", 1),
			MinAssets:        envInt("BATCH_MIN_ASSETS", 1),
			CatalogFile:      os.Getenv("EFFECT_CATALOG_FILE"),
		},
		Staging: StagingConfig{
			Kind:            envString("STAGING_KIND", "local"),
			LocalDir:        envString("STAGING_DIR", "./data/staged"),
			PublicBaseURL:   envString("PUBLIC_BASE_URL", "http://localhost:8080"),
			S3Bucket:        os.Getenv("STAGING_S3_BUCKET"),
			S3Region:        envString("STAGING_S3_REGION", "us-east-1"),
			S3Prefix:        envString("STAGING_S3_PREFIX", "staged"),
			PresignTTL:      envDuration("STAGING_PRESIGN_TTL", time.Hour),
			MaxAge:          envDuration("STAGING_MAX_AGE", 24*time.Hour),
			CleanupSchedule: envString("STAGING_CLEANUP_SCHEDULE", "0 */5 * * * *"),
		},
		Upload: UploadConfig{
			Dir:          envString("UPLOAD_DIR", "./data/uploads"),
			MaxBytes:     int64(envInt("UPLOAD_MAX_BYTES", 100*1024*1024)),
			AllowedTypes: envList("UPLOAD_ALLOWED_TYPES", []string{"video/mp4", "video/mov", "video/quicktime"}),
		},
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	return c.validateCore()
}

func (c *Config) validateCore() error {
	if !validProviders[c.Provider.Kind] {
		return fmt.Errorf("PROVIDER must be one of http, mock; got %q", c.Provider.Kind)
	}
	if c.Provider.Kind == "http" {
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("PROVIDER_BASE_URL is required when PROVIDER is http")
		}
		if !strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
			return fmt.Errorf("PROVIDER_BASE_URL must start with http:// or https://, got %q", c.Provider.BaseURL)
		}
		if c.Provider.APIToken == "" {
			return fmt.Errorf("PROVIDER_API_TOKEN is required when PROVIDER is http")
		}
	}

	if c.Batch.MaxAttempts < 1 {
		return fmt.Errorf("BATCH_MAX_ATTEMPTS must be at least 1, got %d", c.Batch.MaxAttempts)
	}
	if c.Batch.PollInterval <= 0 {
		return fmt.Errorf("BATCH_POLL_INTERVAL must be positive, got %s", c.Batch.PollInterval)
	}
	if c.Batch.ConcurrencyLimit < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1, got %d", c.Batch.ConcurrencyLimit)
	}

	if !validStagers[c.Staging.Kind] {
		return fmt.Errorf("STAGING_KIND must be one of local, s3; got %q", c.Staging.Kind)
	}
	if c.Staging.Kind == "s3" && c.Staging.S3Bucket == "" {
		return fmt.Errorf("STAGING_S3_BUCKET is required when STAGING_KIND is s3")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Upload.MaxBytes)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
