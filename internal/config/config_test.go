package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/closeapproach/internal/cad"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cad.DefaultSourceURL, cfg.Provider.SourceURL)
	assert.True(t, cfg.Features.TrendLine)
	assert.Zero(t, cfg.Cache.MaxAge, "payload cache is opt-in")
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "closeapproach.yaml", `
server:
  addr: ":9000"
  session_ttl: 10m
  auth_open_search: true
provider:
  timeout: 5s
cache:
  dir: /var/cache/cad
  max_age: 1h
export:
  s3_bucket: from-file
features:
  trend_line: false
`)
	t.Setenv("CLOSEAPPROACH_CONFIG", path)
	t.Setenv("CLOSEAPPROACH_S3_BUCKET", "from-env")
	t.Setenv("CLOSEAPPROACH_MAX_FETCHES_PER_IP", "2")
	t.Setenv("CLOSEAPPROACH_TRUST_PROXY", "true")
	t.Setenv("CLOSEAPPROACH_MAX_FETCHES", "16")

	cfg, err := Load(testLogger)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "/var/cache/cad", cfg.Cache.Dir)
	assert.Equal(t, time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, 3, cfg.Cache.MaxFiles, "unset keys keep defaults")
	assert.Equal(t, "from-env", cfg.Export.S3Bucket)
	assert.Equal(t, 2, cfg.Server.MaxFetchesPerIP)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, 16, cfg.Server.MaxFetches)
	assert.True(t, cfg.Server.AuthOpenSearch)
	assert.False(t, cfg.Features.TrendLine)
}

func TestLoadInvalidEnvKeepsDefaults(t *testing.T) {
	t.Setenv("CLOSEAPPROACH_CONFIG", "")
	t.Setenv("CLOSEAPPROACH_MAX_FETCHES_PER_IP", "zero")
	t.Setenv("CLOSEAPPROACH_MAX_FETCHES", "0")
	t.Setenv("CLOSEAPPROACH_FETCH_TIMEOUT", "-3")
	t.Setenv("CLOSEAPPROACH_AUTH_ENABLED", "maybe")
	t.Setenv("CLOSEAPPROACH_SESSION_TTL", "90")

	cfg, err := Load(testLogger)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Server.MaxFetchesPerIP, cfg.Server.MaxFetchesPerIP)
	assert.Equal(t, def.Server.MaxFetches, cfg.Server.MaxFetches)
	assert.Equal(t, def.Provider.Timeout, cfg.Provider.Timeout)
	assert.False(t, cfg.Server.AuthEnabled)
	assert.Equal(t, 90*time.Second, cfg.Server.SessionTTL)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CLOSEAPPROACH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load(testLogger)
	assert.Error(t, err)
}

func TestLoadFileBadYAML(t *testing.T) {
	_, err := LoadFile(writeFile(t, "bad.yaml", "server: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse YAML config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no addr", func(c *Config) { c.Server.Addr = "" }, ErrNoAddr},
		{"auth without token", func(c *Config) { c.Server.AuthEnabled = true }, ErrNoToken},
		{"zero ttl", func(c *Config) { c.Server.SessionTTL = 0 }, ErrBadSessionTTL},
		{"zero concurrency", func(c *Config) { c.Server.MaxFetchesPerIP = 0 }, ErrBadConcurrency},
		{"total below per ip", func(c *Config) { c.Server.MaxFetches = 2 }, ErrBadFetchTotal},
		{"bad url", func(c *Config) { c.Provider.SourceURL = "ftp://example" }, ErrBadSourceURL},
		{"zero timeout", func(c *Config) { c.Provider.Timeout = 0 }, ErrBadTimeout},
		{"zero body limit", func(c *Config) { c.Provider.MaxBodyBytes = 0 }, ErrBadBodyLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Server.LogLevel = "debug"
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	cfg.Server.LogLevel = "loud"
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}
