package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres", cfg.ConfigSource)
	assert.Equal(t, 50, cfg.SlackMessageLimit)
	assert.Equal(t, 30*time.Second, cfg.ToolBackendTimeout)
	assert.Equal(t, "http://localhost:3001", cfg.ToolBackendURL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SLACK_MESSAGE_LIMIT", "10")
	t.Setenv("TOOL_BACKEND_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.SlackMessageLimit)
	assert.Equal(t, 5*time.Second, cfg.ToolBackendTimeout)
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("INGESTOR_ADDR=:9999\n"), 0o644))
	// godotenv does not override variables that are already set.
	os.Unsetenv("INGESTOR_ADDR")
	t.Cleanup(func() { os.Unsetenv("INGESTOR_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
}

func TestValidate_EnvSourceNeedsToken(t *testing.T) {
	cfg := Config{ConfigSource: "env", PostgresHost: "db", ToolBackendURL: "http://x", SlackMessageLimit: 50, RateLimitPerOrg: 20}
	err := cfg.Validate()
	assert.True(t, errors.Is(err, ErrMissingRequired))

	cfg.SlackBotToken = "xoxb-1"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownSource(t *testing.T) {
	cfg := Config{ConfigSource: "consul", PostgresHost: "db", ToolBackendURL: "http://x", SlackMessageLimit: 50, RateLimitPerOrg: 20}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RateLimitMustBePositive(t *testing.T) {
	cfg := Config{ConfigSource: "postgres", PostgresHost: "db", ToolBackendURL: "http://x", SlackMessageLimit: 50}
	assert.ErrorContains(t, cfg.Validate(), "RATE_LIMIT_PER_ORG")

	cfg.RateLimitPerOrg = -1
	assert.Error(t, cfg.Validate())

	cfg.RateLimitPerOrg = 1
	assert.NoError(t, cfg.Validate())
}

func TestLoad_RejectsZeroRateLimit(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RATE_LIMIT_PER_ORG", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{
		PostgresHost: "db", PostgresPort: "5432",
		PostgresUser: "u", PostgresPassword: "p@ss",
		PostgresDB: "records", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/records?sslmode=disable", cfg.PostgresDSN())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("IB_TEST_STR", "value")
	t.Setenv("IB_TEST_INT", "42")
	t.Setenv("IB_TEST_BAD_INT", "forty")

	assert.Equal(t, "value", EnvOr("IB_TEST_STR", "x"))
	assert.Equal(t, "x", EnvOr("IB_TEST_UNSET", "x"))
	assert.Equal(t, 42, EnvOrInt("IB_TEST_INT", 1))
	assert.Equal(t, 1, EnvOrInt("IB_TEST_BAD_INT", 1))
}
