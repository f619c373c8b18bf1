package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromYAMLWithOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
postgres:
  dsn: postgres://file
nats:
  url: nats://file:4222
http:
  addr: ":9000"
jwt:
  secret: from-file
jobs:
  drift_audit_interval: 15m
`)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("JWT_DEFAULT_TTL", "2h")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file", cfg.Postgres.DSN)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.DefaultTTL)
	assert.Equal(t, 15*time.Minute, cfg.Jobs.DriftAuditInterval)
	assert.Equal(t, "arena-ranking", cfg.NATS.DurablePrefix)
	assert.Equal(t, float64(10), cfg.HTTP.RateLimit)
}

func TestLoadConfigFallsBackToEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
	assert.Equal(t, "", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadConfigEnvRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("DRIFT_AUDIT_INTERVAL", "soon")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "ARENA_TEST_DOTENV=loaded\n")
	t.Setenv("ARENA_TEST_DOTENV", "")
	os.Unsetenv("ARENA_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("ARENA_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestOCRConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.OCR.TesseractPath)
	assert.Equal(t, "spa+eng", cfg.OCR.Languages)
	assert.Equal(t, 30*time.Second, cfg.OCR.Timeout)

	t.Setenv("OCR_TESSERACT_PATH", "/usr/bin/tesseract")
	t.Setenv("OCR_LANGUAGES", "eng")
	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/tesseract", cfg.OCR.TesseractPath)
	assert.Equal(t, "eng", cfg.OCR.Languages)
}
