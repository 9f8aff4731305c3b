//go:build linux

package autostart

import (
	"os"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinuxAgentEnableDisableRoundTrips(t *testing.T) {
	xdg.ConfigHome = t.TempDir()
	a := LinuxAgent{ExecutablePath: "/usr/local/bin/sundial"}

	enabled, err := a.IsEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, a.Enable())
	enabled, err = a.IsEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	contents, err := os.ReadFile(a.entryPath())
	require.NoError(t, err)
	assert.Contains(t, string(contents), "/usr/local/bin/sundial")

	require.NoError(t, a.Disable())
	enabled, err = a.IsEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)
}
