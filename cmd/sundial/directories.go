package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/sundial/pkg/dirs"
)

var directoriesCmd = &cobra.Command{
	Use:   "directories",
	Short: "Print the directories Sundial uses for config, data, cache, and logs",
	RunE:  runDirectories,
}

func runDirectories(cmd *cobra.Command, args []string) error {
	configDir, err := dirs.ConfigDir("")
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	dataDir, err := dirs.DataDir("")
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	logDir, err := dirs.LogDir("")
	if err != nil {
		return fmt.Errorf("resolve log dir: %w", err)
	}
	cacheDir, err := dirs.CacheDir("")
	if err != nil {
		return fmt.Errorf("resolve cache dir: %w", err)
	}

	fmt.Println("Directory paths used")
	fmt.Println(" - config:", configDir)
	fmt.Println(" - data:  ", dataDir)
	fmt.Println(" - logs:  ", logDir)
	fmt.Println(" - cache: ", cacheDir)
	return nil
}
