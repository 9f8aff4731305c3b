package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/sundial/pkg/dirs"
)

// levelSeverity orders zerolog's level names so "--level warn" means "warn
// and anything more severe", matching the source's LOGLEVELS cutoff.
var levelSeverity = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
	"fatal": 4,
}

var logsCmd = &cobra.Command{
	Use:   "logs [module]",
	Short: "Print the most recent log file for a module, or every module if none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().String("since", "", "Only show log lines at or after this date (YYYY-MM-DD)")
	logsCmd.Flags().String("level", "", "Only show log lines at or above this severity (debug, info, warn, error)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	testing, _ := cmd.Root().PersistentFlags().GetBool("testing")
	sinceStr, _ := cmd.Flags().GetString("since")
	level, _ := cmd.Flags().GetString("level")

	var since time.Time
	if sinceStr != "" {
		parsed, err := time.Parse("2006-01-02", sinceStr)
		if err != nil {
			return fmt.Errorf("--since: %w", err)
		}
		since = parsed
	}
	if level != "" {
		if _, ok := levelSeverity[level]; !ok {
			return fmt.Errorf("--level: unknown level %q", level)
		}
	}

	logDir, err := dirs.LogDir("")
	if err != nil {
		return fmt.Errorf("resolve log dir: %w", err)
	}

	var moduleName string
	if len(args) == 1 {
		moduleName = args[0]
	}

	if moduleName != "" {
		return printModuleLog(filepath.Join(logDir, moduleName), moduleName, testing, since, level)
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return fmt.Errorf("read log dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := printModuleLog(filepath.Join(logDir, entry.Name()), entry.Name(), testing, since, level); err != nil {
			return err
		}
	}
	return nil
}

// printModuleLog finds the newest log file in dir matching testing's
// production/testing naming split and prints it filtered by since/level.
func printModuleLog(dir, moduleName string, testing bool, since time.Time, level string) error {
	path, err := newestLogFile(dir, testing)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	if path == "" {
		fmt.Printf("No logfile found for %s\n", moduleName)
		return nil
	}
	return printLog(path, moduleName, since, level)
}

func newestLogFile(dir string, testing bool) (string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var newest string
	var newestModTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		isTestingFile := strings.Contains(entry.Name(), "testing")
		if isTestingFile != testing {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestModTime) {
			newest = entry.Name()
			newestModTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", nil
	}
	return filepath.Join(dir, newest), nil
}

// logLine is the shape of one zerolog JSON line this CLI cares about.
type logLine struct {
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}

func printLog(path, moduleName string, since time.Time, level string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	minSeverity := -1
	if level != "" {
		minSeverity = levelSeverity[level]
	}

	var total, printed int
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var toPrint []string
	for scanner.Scan() {
		line := scanner.Text()
		total++

		var parsed logLine
		if err := json.Unmarshal([]byte(line), &parsed); err == nil {
			if !since.IsZero() && parsed.Time.Before(since) {
				continue
			}
			if minSeverity >= 0 {
				sev, ok := levelSeverity[parsed.Level]
				if !ok || sev < minSeverity {
					continue
				}
			}
		}
		toPrint = append(toPrint, line)
		printed++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}

	fmt.Printf("Logs for module %s (%s, %d lines)\n", moduleName, filepath.Base(path), total)
	for _, line := range toPrint {
		fmt.Println(line)
	}
	fmt.Printf("  (Filtered %d/%d lines)\n", printed, total)
	return nil
}
