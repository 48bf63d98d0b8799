package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/star/closeapproach/internal/cad"
)

var errCLIConfigInvalid = errors.New("invalid config file")

// CLIConfig holds cadq defaults. Zero values leave the built-in default in
// place.
type CLIConfig struct {
	Body        string `json:"body,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Days        int    `json:"days,omitempty"`
	MaxDistance string `json:"dist_max,omitempty"` //nolint:tagliatelle // provider parameter name
	Limit       int    `json:"limit,omitempty"`
	Type        string `json:"type,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	TimeoutSecs int    `json:"timeout_seconds,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty"`
	S3Prefix    string `json:"s3_prefix,omitempty"`
	S3Region    string `json:"s3_region,omitempty"`
	S3Endpoint  string `json:"s3_endpoint,omitempty"`
	History     string `json:"history_file,omitempty"`
}

// CLIConfigPath returns $XDG_CONFIG_HOME/cadq/config.json when set, else
// ~/.config/cadq/config.json. It returns "" when neither can be determined.
func CLIConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok && after != "" {
			return filepath.Join(after, "cadq", "config.json")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cadq", "config.json")
}

// LoadCLI reads a JSON-with-comments config file. A missing file is not an
// error; loaded reports whether one was read.
func LoadCLI(path string) (cfg CLIConfig, loaded bool, err error) {
	if path == "" {
		return CLIConfig{}, false, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return CLIConfig{}, false, nil
		}
		return CLIConfig{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return CLIConfig{}, false, fmt.Errorf("%w %s: invalid JSONC: %w", errCLIConfigInvalid, path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return CLIConfig{}, false, fmt.Errorf("%w %s: invalid JSON: %w", errCLIConfigInvalid, path, err)
	}
	return cfg, true, nil
}

// Query builds the starting query from the file defaults.
func (c CLIConfig) Query() (cad.Query, error) {
	q := cad.DefaultQuery()
	if c.Body != "" {
		b, ok := cad.LookupBody(c.Body)
		if !ok {
			return q, fmt.Errorf("%w: %q", cad.ErrUnknownBody, c.Body)
		}
		q.Body = b
	}
	if c.Unit != "" {
		u, ok := cad.ParseUnit(c.Unit)
		if !ok {
			return q, fmt.Errorf("%w: %q", cad.ErrUnknownUnit, c.Unit)
		}
		q.Unit = u
		q.MaxDistance = cad.DefaultMaxDistance(u)
	}
	if c.MaxDistance != "" {
		q.MaxDistance = c.MaxDistance
	}
	if c.Days > 0 {
		q.DateMax = "+" + strconv.Itoa(c.Days)
	}
	if c.Limit > 0 {
		q.Limit = c.Limit
	}
	if c.Type != "" {
		t, ok := cad.ParseObjectType(c.Type)
		if !ok {
			return q, fmt.Errorf("%w: %q", cad.ErrUnknownObjectType, c.Type)
		}
		q.ObjectType = t
	}
	return q, nil
}
