package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sundial/pkg/storage"
)

func TestDefaultMatchesPackageDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100, cfg.CredentialCacheMaxEntries)
	assert.Equal(t, time.Hour, cfg.CredentialCacheTTL)
	assert.Equal(t, storage.CoalesceWindow, cfg.HeartbeatWindow)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFileOntoDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sundial.yaml")
	writeFile(t, path, "log_level: debug\ndata_dir: /tmp/custom\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/custom", cfg.DataDir)
	assert.Equal(t, 100, cfg.CredentialCacheMaxEntries)
}

func TestLoadRejectsDisagreeingHeartbeatWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sundial.yaml")
	writeFile(t, path, "heartbeat_window: 30s\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadAcceptsMatchingHeartbeatWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sundial.yaml")
	writeFile(t, path, "heartbeat_window: 70s\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, storage.CoalesceWindow, cfg.HeartbeatWindow)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}
