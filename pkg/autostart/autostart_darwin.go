//go:build darwin

package autostart

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"howett.net/plist"
)

const (
	launchAgentLabel = "com.ralvie.sundial"
	bundleIdentifier = "net.ralvie.Sundial"
)

// DarwinAgent registers Sundial as a LaunchAgent plist under
// ~/Library/LaunchAgents, matching the source's launch_start.py.
type DarwinAgent struct {
	// ExecutablePath is the binary launchd should run at login.
	ExecutablePath string
}

func (a DarwinAgent) plistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("autostart: resolve home dir: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents", launchAgentLabel+".plist"), nil
}

func (a DarwinAgent) Enable() error {
	path, err := a.plistPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("autostart: ensure LaunchAgents dir: %w", err)
	}

	content := map[string]any{
		"Label":            launchAgentLabel,
		"ProgramArguments": []string{a.ExecutablePath},
		"RunAtLoad":        true,
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("autostart: create plist: %w", err)
	}
	defer f.Close()
	if err := plist.NewEncoder(f).Encode(content); err != nil {
		return fmt.Errorf("autostart: write plist: %w", err)
	}

	if err := exec.Command("launchctl", "load", path).Run(); err != nil {
		return fmt.Errorf("autostart: launchctl load: %w", err)
	}
	if err := exec.Command("launchctl", "start", launchAgentLabel).Run(); err != nil {
		return fmt.Errorf("autostart: launchctl start: %w", err)
	}
	return nil
}

func (a DarwinAgent) Disable() error {
	path, err := a.plistPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_ = exec.Command("launchctl", "unload", path).Run()
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("autostart: remove plist: %w", err)
	}
	return nil
}

func (a DarwinAgent) IsEnabled() (bool, error) {
	out, err := exec.Command("launchctl", "list").Output()
	if err != nil {
		return false, fmt.Errorf("autostart: launchctl list: %w", err)
	}
	return containsLine(out, launchAgentLabel), nil
}

func containsLine(out []byte, needle string) bool {
	for i := 0; i+len(needle) <= len(out); i++ {
		if string(out[i:i+len(needle)]) == needle {
			return true
		}
	}
	return false
}

var _ Agent = DarwinAgent{}

// New returns the platform Agent for the running binary at executablePath.
func New(executablePath string) Agent {
	return DarwinAgent{ExecutablePath: executablePath}
}
