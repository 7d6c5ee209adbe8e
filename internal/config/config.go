package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Mailer   MailerConfig   `yaml:"mailer"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for the processor lock. When Addr is
// empty the processor falls back to a Postgres advisory lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// MailerConfig selects and configures the outbound email provider.
// Provider is "log" (dry run) or "ses".
type MailerConfig struct {
	Provider  string    `yaml:"provider"`
	FromEmail string    `yaml:"from_email"`
	FromName  string    `yaml:"from_name"`
	SES       SESConfig `yaml:"ses"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QueueConfig holds send queue processor settings
type QueueConfig struct {
	BatchSize         int `yaml:"batch_size"`
	MaxRetries        int `yaml:"max_retries"`
	RetryBaseMinutes  int `yaml:"retry_base_minutes"`
	StaleClaimMinutes int `yaml:"stale_claim_minutes"`
}

// RetryBase returns the first retry delay as a duration
func (c QueueConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMinutes) * time.Minute
}

// StaleClaim returns the stale-claim cutoff as a duration
func (c QueueConfig) StaleClaim() time.Duration {
	return time.Duration(c.StaleClaimMinutes) * time.Minute
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Mailer.Provider == "" {
		cfg.Mailer.Provider = "log"
	}
	if cfg.Mailer.SES.Region == "" {
		cfg.Mailer.SES.Region = "us-west-2"
	}
	if cfg.Mailer.SES.TimeoutSeconds == 0 {
		cfg.Mailer.SES.TimeoutSeconds = 30
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 500
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.RetryBaseMinutes == 0 {
		cfg.Queue.RetryBaseMinutes = 15
	}
	if cfg.Queue.StaleClaimMinutes == 0 {
		cfg.Queue.StaleClaimMinutes = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if provider := os.Getenv("MAILER_PROVIDER"); provider != "" {
		cfg.Mailer.Provider = provider
	}
	if from := os.Getenv("MAILER_FROM_EMAIL"); from != "" {
		cfg.Mailer.FromEmail = from
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.Mailer.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.Mailer.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Mailer.SES.Region = region
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}
