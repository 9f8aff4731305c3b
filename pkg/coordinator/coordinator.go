// Package coordinator defines the boundary interface to the external process
// manager that starts and stops watcher modules. The store takes a
// ModuleCoordinator injected at construction and never imports it back,
// breaking the cyclical store<->process-manager reference present in the
// original implementation (see design notes in DESIGN.md).
package coordinator

// WatcherStatus is one row of ModuleCoordinator.Status.
type WatcherStatus struct {
	Name   string
	Status string
}

// ModuleCoordinator is the abstract surface over the external process
// manager. The store calls Stop/Start for every module except the server
// watcher itself, on identity or schema change.
type ModuleCoordinator interface {
	Status() ([]WatcherStatus, error)
	Start(name string) error
	Stop(name string) error
}

// StopAll and StartAll are convenience helpers EncryptedStore.Open uses
// around the open protocol's "stop all modules, then start all modules"
// step; they iterate Status() and skip the server watcher.
const serverWatcherName = "server"

func StopAll(c ModuleCoordinator) error {
	statuses, err := c.Status()
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if s.Name == serverWatcherName {
			continue
		}
		if err := c.Stop(s.Name); err != nil {
			return err
		}
	}
	return nil
}

func StartAll(c ModuleCoordinator) error {
	statuses, err := c.Status()
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if s.Name == serverWatcherName {
			continue
		}
		if err := c.Start(s.Name); err != nil {
			return err
		}
	}
	return nil
}

// NoopCoordinator is a ModuleCoordinator that manages no real processes; it
// is useful for tests and for the CLI's qt (quick test) surface, which run
// without a real watcher supervisor attached.
type NoopCoordinator struct{}

func (NoopCoordinator) Status() ([]WatcherStatus, error) { return nil, nil }
func (NoopCoordinator) Start(name string) error          { return nil }
func (NoopCoordinator) Stop(name string) error            { return nil }

var _ ModuleCoordinator = NoopCoordinator{} //nolint:unused
