package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Config holds the ingestor service settings.
type Config struct {
	Addr            string `envconfig:"INGESTOR_ADDR" default:":8080"`
	MetricsAddr     string `envconfig:"METRICS_ADDR" default:"127.0.0.1:9090"`
	APIKeys         string `envconfig:"API_KEYS"`
	RateLimitPerOrg int    `envconfig:"RATE_LIMIT_PER_ORG" default:"20"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"ingestbridge"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"changeme"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"ingestbridge"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	// ConfigSource selects where connector settings are read from:
	// "postgres" (connector_configs table) or "env".
	ConfigSource      string `envconfig:"CONFIG_SOURCE" default:"postgres"`
	SlackBotToken     string `envconfig:"SLACK_BOT_TOKEN"`
	SlackAPIURL       string `envconfig:"SLACK_API_URL"`
	SlackMessageLimit int    `envconfig:"SLACK_MESSAGE_LIMIT" default:"50"`

	// SlackRequestsPerSec bounds Web API calls per org client; 0 disables.
	SlackRequestsPerSec float64 `envconfig:"SLACK_REQUESTS_PER_SEC" default:"1"`

	ToolBackendURL       string        `envconfig:"TOOL_BACKEND_URL" default:"http://localhost:3001"`
	ToolBackendToken     string        `envconfig:"TOOL_BACKEND_TOKEN"`
	ToolBackendJWTSecret string        `envconfig:"TOOL_BACKEND_JWT_SECRET"`
	ToolBackendTimeout   time.Duration `envconfig:"TOOL_BACKEND_TIMEOUT" default:"30s"`

	NSQDAddr     string `envconfig:"NSQD_ADDR"`
	RecordsTopic string `envconfig:"NSQ_RECORDS_TOPIC" default:"records"`

	ArchiveEndpoint  string `envconfig:"ARCHIVE_S3_ENDPOINT"`
	ArchiveAccessKey string `envconfig:"ARCHIVE_S3_ACCESS_KEY" default:"minioadmin"`
	ArchiveSecretKey string `envconfig:"ARCHIVE_S3_SECRET_KEY" default:"minioadmin"`
	ArchiveBucket    string `envconfig:"ARCHIVE_S3_BUCKET" default:"ingestbridge-records"`
	ArchiveSecure    bool   `envconfig:"ARCHIVE_S3_SECURE" default:"false"`

	OTelServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"ingestbridge"`
	OTelEndpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; the shell environment may carry everything.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.ConfigSource {
	case "postgres":
	case "env":
		if c.SlackBotToken == "" {
			return fmt.Errorf("%w: SLACK_BOT_TOKEN (CONFIG_SOURCE=env)", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("config: unknown CONFIG_SOURCE %q", c.ConfigSource)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: POSTGRES_HOST", ErrMissingRequired)
	}
	if c.ToolBackendURL == "" {
		return fmt.Errorf("%w: TOOL_BACKEND_URL", ErrMissingRequired)
	}
	if c.SlackMessageLimit <= 0 {
		return fmt.Errorf("config: SLACK_MESSAGE_LIMIT must be positive, got %d", c.SlackMessageLimit)
	}
	if c.RateLimitPerOrg <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_PER_ORG must be positive, got %d", c.RateLimitPerOrg)
	}
	return nil
}

// PostgresDSN builds a postgres:// URL from the individual settings.
func (c *Config) PostgresDSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     net.JoinHostPort(c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSLMode),
	}
	return u.String()
}
