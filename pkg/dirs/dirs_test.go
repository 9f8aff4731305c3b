package dirs

import (
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDirIsCreatedAndScopedToAppName(t *testing.T) {
	path, err := DataDir("")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, appName))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDataDirScopesToModule(t *testing.T) {
	path, err := DataDir("watcher-window")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "Sundial/watcher-window") || strings.HasSuffix(path, `Sundial\watcher-window`))
}

func TestLogDirOnLinuxLivesUnderCache(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("log-dir-under-cache exception only applies on linux")
	}
	logDir, err := LogDir("")
	require.NoError(t, err)
	cacheDir, err := CacheDir("")
	require.NoError(t, err)
	assert.Contains(t, logDir, cacheDir+string(os.PathSeparator)+"log")
}
