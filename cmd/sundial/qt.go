package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cuemby/sundial/pkg/autostart"
	"github.com/cuemby/sundial/pkg/config"
	"github.com/cuemby/sundial/pkg/coordinator"
	"github.com/cuemby/sundial/pkg/credential"
	"github.com/cuemby/sundial/pkg/dirs"
	"github.com/cuemby/sundial/pkg/metrics"
	"github.com/cuemby/sundial/pkg/sderr"
)

// qtCmd is the source's "qt" wrapper around the external aw-qt watcher
// manager, reworked as an in-process quick self-check: open the credential
// gate against the real OS secret store and report readiness instead of
// shelling out to a separate process. Under the root --testing flag qt also
// prints a note when credentials are not ready; the flag's other effect, the
// sundial-testing.log file name, is applied by initLogging.
var qtCmd = &cobra.Command{
	Use:   "qt",
	Short: "Run a quick self-check of the credential gate and datastore",
	RunE:  runQt,
}

func runQt(cmd *cobra.Command, args []string) error {
	testing, _ := cmd.Root().PersistentFlags().GetBool("testing")

	dataDir, err := dirs.DataDir("")
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := config.Default()
	if configDir, err := dirs.ConfigDir(""); err == nil {
		cfg, err = config.Load(filepath.Join(configDir, "sundial.yaml"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	gate, err := credential.NewGate(dataDir, credential.KeyringSecretStore{}, autostart.New(exe))
	if err != nil {
		return fmt.Errorf("open credential registry: %w", err)
	}
	defer gate.Close()

	if cfg.CredentialCacheMaxEntries > 0 && cfg.CredentialCacheTTL > 0 {
		gate.UseCache(credential.NewCacheWithLimits(cfg.CredentialCacheMaxEntries, cfg.CredentialCacheTTL))
	}

	store, err := gate.Open(coordinator.NoopCoordinator{})
	if err != nil {
		metrics.RegisterComponent("credential", false, err.Error())
		if testing {
			fmt.Println("qt: credentials not ready (expected in --testing without a signed-in identity)")
		}
		if errors.Is(err, sderr.ErrNotReady) {
			fmt.Println("qt: store not ready — sign in before retrying")
			return nil
		}
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	metrics.RegisterComponent("credential", true, "")
	metrics.RegisterComponent("store", true, "")

	buckets, err := store.Buckets()
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	fmt.Printf("qt: store opened at %s\n", dataDir)
	fmt.Printf("qt: %d bucket(s) registered\n", len(buckets))
	health := metrics.GetHealth()
	fmt.Printf("qt: status=%s\n", health.Status)
	return nil
}
