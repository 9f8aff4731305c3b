// Package dirs resolves the per-platform config/data/cache/log directories
// Sundial reads and writes to, grounded on the XDG base directory
// conventions rather than hand-rolled $HOME-joining.
package dirs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

const appName = "Sundial"

func ensure(path string) (string, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return "", fmt.Errorf("dirs: ensure %s: %w", path, err)
	}
	return path, nil
}

func withModule(base, module string) string {
	if module == "" {
		return filepath.Join(base, appName)
	}
	return filepath.Join(base, appName, module)
}

// DataDir returns (creating if needed) Sundial's data directory, optionally
// scoped to module.
func DataDir(module string) (string, error) {
	return ensure(withModule(xdg.DataHome, module))
}

// CacheDir returns Sundial's cache directory.
func CacheDir(module string) (string, error) {
	return ensure(withModule(xdg.CacheHome, module))
}

// ConfigDir returns Sundial's config directory.
func ConfigDir(module string) (string, error) {
	return ensure(withModule(xdg.ConfigHome, module))
}

// LogDir returns Sundial's log directory. On Linux this is a "log"
// subdirectory of the cache dir rather than the XDG state dir, preserving
// the source's deliberate backwards-compatibility exception for older
// installs that already wrote logs there.
func LogDir(module string) (string, error) {
	if runtime.GOOS == "linux" {
		base := filepath.Join(xdg.CacheHome, appName, "log")
		if module != "" {
			base = filepath.Join(base, module)
		}
		return ensure(base)
	}
	return ensure(withModule(xdg.StateHome, module))
}
