package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cuemby/sundial/pkg/dirs"
	"github.com/cuemby/sundial/pkg/log"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sundial",
	Short: "Sundial activity-tracking datastore wrapper",
	Long: `Sundial is the command-line companion to the activity-tracking
datastore: a small toolbox for locating its data/config/log directories,
reading its log files, and running a self-check without a running
dashboard server.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Sundial version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")
	rootCmd.PersistentFlags().Bool("testing", false, "Write to the testing log file (sundial-testing.log) instead of sundial.log")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(directoriesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(qtCmd)
}

// logFileSuffix returns "sundial.log" or "sundial-testing.log" depending on
// the root --testing flag, matching the source's testing-vs-production log
// file naming (aw_cli/log.py's "testing" in f.name check).
func logFileSuffix(testing bool) string {
	if testing {
		return "sundial-testing.log"
	}
	return "sundial.log"
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	testing, _ := rootCmd.PersistentFlags().GetBool("testing")

	logDir, err := dirs.LogDir("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not resolve log directory, logging to stderr: %v\n", err)
		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON, Output: os.Stderr})
		return
	}

	path := filepath.Join(logDir, logFileSuffix(testing))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file %s, logging to stderr: %v\n", path, err)
		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON, Output: os.Stderr})
		return
	}

	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON, Output: file})
}
