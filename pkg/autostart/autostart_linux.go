//go:build linux

package autostart

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const desktopEntryName = "com.ralvie.sundial.desktop"

// LinuxAgent registers Sundial via an XDG autostart .desktop entry. The
// source has no Linux branch of its own (only macOS launchd and Windows
// Startup-folder paths); this fills the gap the distillation left using the
// platform's standard autostart mechanism rather than skipping Linux.
type LinuxAgent struct {
	// ExecutablePath is the binary to launch at login.
	ExecutablePath string
}

func (a LinuxAgent) entryPath() string {
	return filepath.Join(xdg.ConfigHome, "autostart", desktopEntryName)
}

func (a LinuxAgent) Enable() error {
	path := a.entryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("autostart: ensure autostart dir: %w", err)
	}
	entry := fmt.Sprintf(
		"[Desktop Entry]\nType=Application\nName=Sundial\nExec=%s\nX-GNOME-Autostart-enabled=true\n",
		a.ExecutablePath,
	)
	if err := os.WriteFile(path, []byte(entry), 0644); err != nil {
		return fmt.Errorf("autostart: write desktop entry: %w", err)
	}
	return nil
}

func (a LinuxAgent) Disable() error {
	if err := os.Remove(a.entryPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("autostart: remove desktop entry: %w", err)
	}
	return nil
}

func (a LinuxAgent) IsEnabled() (bool, error) {
	_, err := os.Stat(a.entryPath())
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("autostart: stat desktop entry: %w", err)
	}
	return true, nil
}

var _ Agent = LinuxAgent{}

// New returns the platform Agent for the running binary at executablePath.
func New(executablePath string) Agent {
	return LinuxAgent{ExecutablePath: executablePath}
}
