//go:build windows

package autostart

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// runKeyPath and valueName place Sundial under the per-user Run key rather
// than a Startup-folder shortcut: both approaches satisfy "launch at login"
// on Windows, and the registry key needs no shortcut-file library.
const (
	runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`
	valueName  = "Sundial"
)

// WindowsAgent registers Sundial in the current user's Run registry key.
type WindowsAgent struct {
	// ExecutablePath is the binary to launch at login.
	ExecutablePath string
}

func (a WindowsAgent) Enable() error {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("autostart: open run key: %w", err)
	}
	defer k.Close()
	if err := k.SetStringValue(valueName, a.ExecutablePath); err != nil {
		return fmt.Errorf("autostart: set run value: %w", err)
	}
	return nil
}

func (a WindowsAgent) Disable() error {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return nil
		}
		return fmt.Errorf("autostart: open run key: %w", err)
	}
	defer k.Close()
	if err := k.DeleteValue(valueName); err != nil && err != registry.ErrNotExist {
		return fmt.Errorf("autostart: delete run value: %w", err)
	}
	return nil
}

func (a WindowsAgent) IsEnabled() (bool, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return false, nil
		}
		return false, fmt.Errorf("autostart: open run key: %w", err)
	}
	defer k.Close()
	_, _, err = k.GetStringValue(valueName)
	if err == registry.ErrNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("autostart: read run value: %w", err)
	}
	return true, nil
}

var _ Agent = WindowsAgent{}

// New returns the platform Agent for the running binary at executablePath.
func New(executablePath string) Agent {
	return WindowsAgent{ExecutablePath: executablePath}
}
