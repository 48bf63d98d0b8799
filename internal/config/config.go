// Package config loads server settings from an optional YAML file and
// CLOSEAPPROACH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/closeapproach/internal/cad"
)

// Validation errors.
var (
	ErrNoAddr         = errors.New("server.addr is required")
	ErrNoToken        = errors.New("server.auth_token is required when auth is enabled")
	ErrBadTimeout     = errors.New("provider.timeout must be positive")
	ErrBadBodyLimit   = errors.New("provider.max_body_bytes must be positive")
	ErrBadSourceURL   = errors.New("provider.source_url must be an http(s) URL")
	ErrBadConcurrency = errors.New("server.max_fetches_per_ip must be at least 1")
	ErrBadFetchTotal  = errors.New("server.max_fetches must be at least server.max_fetches_per_ip")
	ErrBadSessionTTL  = errors.New("server.session_ttl must be positive")
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Export   ExportConfig   `yaml:"export"`
	Features FeatureConfig  `yaml:"features"`
}

// ServerConfig holds HTTP listener and session settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	AuthEnabled     bool          `yaml:"auth_enabled"`
	AuthToken       string        `yaml:"auth_token"`
	AuthOpenSearch  bool          `yaml:"auth_open_search"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	MaxFetchesPerIP int           `yaml:"max_fetches_per_ip"`
	MaxFetches      int           `yaml:"max_fetches"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProviderConfig points the fetcher at the close-approach API.
type ProviderConfig struct {
	SourceURL    string        `yaml:"source_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// CacheConfig controls the on-disk payload cache. A zero MaxAge disables it.
type CacheConfig struct {
	Dir      string        `yaml:"dir"`
	MaxFiles int           `yaml:"max_files"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// ExportConfig configures CSV uploads. An empty bucket disables S3 export.
type ExportConfig struct {
	S3Bucket       string `yaml:"s3_bucket"`
	S3Prefix       string `yaml:"s3_prefix"`
	S3Region       string `yaml:"s3_region"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// FeatureConfig switches optional capabilities.
type FeatureConfig struct {
	TrendLine bool `yaml:"trend_line"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			LogLevel:        "info",
			SessionTTL:      30 * time.Minute,
			MaxFetchesPerIP: 4,
			MaxFetches:      64,
			ShutdownTimeout: 5 * time.Second,
		},
		Provider: ProviderConfig{
			SourceURL:    cad.DefaultSourceURL,
			Timeout:      cad.DefaultTimeout,
			MaxBodyBytes: cad.DefaultMaxBodyBytes,
		},
		Cache: CacheConfig{
			Dir:      "/tmp/closeapproach/cad",
			MaxFiles: 3,
		},
		Features: FeatureConfig{TrendLine: true},
	}
}

// Load reads the YAML file named by CLOSEAPPROACH_CONFIG, if any, then
// applies environment overrides.
func Load(logger *slog.Logger) (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CLOSEAPPROACH_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		logger.Info("loaded config file", "path", path)
	}
	cfg.applyEnv(logger)
	return cfg, nil
}

// LoadFile reads path over the defaults without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(logger *slog.Logger) {
	if v := os.Getenv("CLOSEAPPROACH_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CLOSEAPPROACH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CLOSEAPPROACH_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid CLOSEAPPROACH_AUTH_ENABLED value, keeping configured value", "value", v, "enabled", c.Server.AuthEnabled)
		} else {
			c.Server.AuthEnabled = enabled
		}
	}
	if v := os.Getenv("CLOSEAPPROACH_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("CLOSEAPPROACH_AUTH_OPEN_SEARCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.AuthOpenSearch = b
		} else {
			logger.Warn("invalid CLOSEAPPROACH_AUTH_OPEN_SEARCH value, ignoring", "value", v)
		}
	}
	if v := os.Getenv("CLOSEAPPROACH_SESSION_TTL"); v != "" {
		if d, ok := parseSeconds(v); ok {
			c.Server.SessionTTL = d
		} else {
			logger.Warn("invalid CLOSEAPPROACH_SESSION_TTL value, using default", "value", v, "default", c.Server.SessionTTL.Seconds())
		}
	}
	if v := os.Getenv("CLOSEAPPROACH_TRUST_PROXY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.TrustProxy = b
		} else {
			logger.Warn("invalid CLOSEAPPROACH_TRUST_PROXY value, ignoring", "value", v)
		}
	}
	if v := os.Getenv("CLOSEAPPROACH_MAX_FETCHES_PER_IP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CLOSEAPPROACH_MAX_FETCHES_PER_IP value, using default", "value", v, "default", c.Server.MaxFetchesPerIP)
		} else {
			c.Server.MaxFetchesPerIP = n
		}
	}
	if v := os.Getenv("CLOSEAPPROACH_MAX_FETCHES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CLOSEAPPROACH_MAX_FETCHES value, using default", "value", v, "default", c.Server.MaxFetches)
		} else {
			c.Server.MaxFetches = n
		}
	}

	if v := os.Getenv("CLOSEAPPROACH_SOURCE_URL"); v != "" {
		c.Provider.SourceURL = v
	}
	if v := os.Getenv("CLOSEAPPROACH_FETCH_TIMEOUT"); v != "" {
		if d, ok := parseSeconds(v); ok {
			c.Provider.Timeout = d
		} else {
			logger.Warn("invalid CLOSEAPPROACH_FETCH_TIMEOUT value, using default", "value", v, "default", c.Provider.Timeout.Seconds())
		}
	}

	if v := os.Getenv("CLOSEAPPROACH_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("CLOSEAPPROACH_CACHE_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			logger.Warn("invalid CLOSEAPPROACH_CACHE_MAX_AGE value, cache disabled", "value", v)
			c.Cache.MaxAge = 0
		} else {
			c.Cache.MaxAge = time.Duration(seconds) * time.Second
		}
	}
	if v := os.Getenv("CLOSEAPPROACH_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CLOSEAPPROACH_CACHE_MAX_FILES value, using default", "value", v, "default", c.Cache.MaxFiles)
		} else {
			c.Cache.MaxFiles = n
		}
	}

	if v := os.Getenv("CLOSEAPPROACH_S3_BUCKET"); v != "" {
		c.Export.S3Bucket = v
	}
	if v := os.Getenv("CLOSEAPPROACH_S3_PREFIX"); v != "" {
		c.Export.S3Prefix = v
	}
	if v := os.Getenv("CLOSEAPPROACH_S3_REGION"); v != "" {
		c.Export.S3Region = v
	}
	if v := os.Getenv("CLOSEAPPROACH_S3_ENDPOINT"); v != "" {
		c.Export.S3Endpoint = v
	}
	if v := os.Getenv("CLOSEAPPROACH_S3_USE_PATH_STYLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Export.S3UsePathStyle = b
		} else {
			logger.Warn("invalid CLOSEAPPROACH_S3_USE_PATH_STYLE value, ignoring", "value", v)
		}
	}

	if v := os.Getenv("CLOSEAPPROACH_ENABLE_TREND_LINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Features.TrendLine = b
		} else {
			logger.Warn("invalid CLOSEAPPROACH_ENABLE_TREND_LINE value, ignoring", "value", v)
		}
	}
}

// parseSeconds accepts a Go duration ("90s") or a bare number of seconds.
func parseSeconds(v string) (time.Duration, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrNoAddr
	}
	if c.Server.AuthEnabled && c.Server.AuthToken == "" {
		return ErrNoToken
	}
	if c.Server.SessionTTL <= 0 {
		return ErrBadSessionTTL
	}
	if c.Server.MaxFetchesPerIP < 1 {
		return ErrBadConcurrency
	}
	if c.Server.MaxFetches < c.Server.MaxFetchesPerIP {
		return ErrBadFetchTotal
	}
	if !strings.HasPrefix(c.Provider.SourceURL, "http://") && !strings.HasPrefix(c.Provider.SourceURL, "https://") {
		return fmt.Errorf("%w: %q", ErrBadSourceURL, c.Provider.SourceURL)
	}
	if c.Provider.Timeout <= 0 {
		return ErrBadTimeout
	}
	if c.Provider.MaxBodyBytes <= 0 {
		return ErrBadBodyLimit
	}
	return nil
}

// LogLevel maps Server.LogLevel to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Server.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
