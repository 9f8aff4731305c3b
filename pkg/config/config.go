// Package config loads the small set of in-process settings Sundial reads at
// startup: data directory overrides, log level, and credential-cache sizing.
// It does not carry HTTP-server or CLI-flag configuration, which remains out
// of scope.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/sundial/pkg/storage"
)

// Config is Sundial's top-level settings document, unmarshalled from YAML.
type Config struct {
	// DataDir overrides pkg/dirs's XDG-derived data directory when set.
	DataDir string `yaml:"data_dir,omitempty"`
	// LogLevel is one of pkg/log's supported levels ("debug", "info",
	// "warn", "error"). Empty means pkg/log's own default.
	LogLevel string `yaml:"log_level,omitempty"`
	// CredentialCacheMaxEntries and CredentialCacheTTL size the credential
	// gate's decoded-blob cache (see pkg/credential.Cache). Zero values mean
	// "use the package defaults".
	CredentialCacheMaxEntries int           `yaml:"credential_cache_max_entries,omitempty"`
	CredentialCacheTTL        time.Duration `yaml:"credential_cache_ttl,omitempty"`
	// HeartbeatWindow documents the heartbeat-coalescing lookback window
	// ingest uses. It is informational, not a live override: the window is
	// a protocol invariant (events sharing app/title within this span
	// coalesce into one row), so Load rejects a value that disagrees with
	// storage.CoalesceWindow rather than silently drifting from it.
	HeartbeatWindow time.Duration `yaml:"heartbeat_window,omitempty"`
}

// Default returns a Config with every field at its package default, matching
// the values pkg/credential and pkg/storage fall back to when no config file
// is present.
func Default() *Config {
	return &Config{
		LogLevel:                  "info",
		CredentialCacheMaxEntries: 100,
		CredentialCacheTTL:        time.Hour,
		HeartbeatWindow:           storage.CoalesceWindow,
	}
}

// Load reads and parses a YAML settings file at path, filling any field the
// file omits from Default. A missing file is not an error: Load returns
// Default() unchanged, matching the teacher's tolerance for an absent
// optional manifest.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fromFile.DataDir != "" {
		cfg.DataDir = fromFile.DataDir
	}
	if fromFile.LogLevel != "" {
		cfg.LogLevel = fromFile.LogLevel
	}
	if fromFile.CredentialCacheMaxEntries != 0 {
		cfg.CredentialCacheMaxEntries = fromFile.CredentialCacheMaxEntries
	}
	if fromFile.CredentialCacheTTL != 0 {
		cfg.CredentialCacheTTL = fromFile.CredentialCacheTTL
	}
	if fromFile.HeartbeatWindow != 0 && fromFile.HeartbeatWindow != storage.CoalesceWindow {
		return nil, fmt.Errorf("config: heartbeat_window %s disagrees with the fixed coalescing window %s",
			fromFile.HeartbeatWindow, storage.CoalesceWindow)
	}

	return cfg, nil
}
