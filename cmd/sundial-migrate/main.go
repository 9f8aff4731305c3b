// Command sundial-migrate upgrades an on-disk encrypted store file in place:
// it copies a prior schema version's file forward if needed, takes a backup
// of the encrypted file, then opens and immediately closes the store so the
// ordinary open-path migration (storage.migrate, additive columns only)
// runs and the result is flushed back to disk.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/cuemby/sundial/pkg/coordinator"
	"github.com/cuemby/sundial/pkg/storage"
)

var (
	dataDir    = flag.String("data-dir", "", "Sundial data directory (required)")
	email      = flag.String("email", "", "Account email the store file is keyed under (required)")
	passphrase = flag.String("passphrase", "", "Decrypted database passphrase (falls back to $SUNDIAL_PASSPHRASE)")
	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath = flag.String("backup", "", "Path to back up the encrypted file before migrating (default: <file>.backup)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Sundial Store Migration Tool")
	log.Println("============================")

	if *dataDir == "" || *email == "" {
		log.Fatal("-data-dir and -email are required")
	}
	pass := *passphrase
	if pass == "" {
		pass = os.Getenv("SUNDIAL_PASSPHRASE")
	}
	if pass == "" && !*dryRun {
		log.Fatal("-passphrase (or $SUNDIAL_PASSPHRASE) is required unless -dry-run is set")
	}

	currentPath := filepath.Join(*dataDir, fmt.Sprintf("sundial-sqlite-%s.v%d.db", *email, storage.SchemaVersion))
	priorPath := filepath.Join(*dataDir, fmt.Sprintf("sundial-sqlite-%s.v%d.db", *email, storage.SchemaVersion-1))

	log.Printf("Current schema file: %s", currentPath)
	log.Printf("Dry run: %v", *dryRun)

	if _, err := os.Stat(currentPath); os.IsNotExist(err) {
		if _, err := os.Stat(priorPath); err == nil {
			log.Printf("Found prior schema version file: %s", priorPath)
			if *dryRun {
				log.Printf("[DRY RUN] Would copy %s -> %s", priorPath, currentPath)
			} else {
				if err := copyFile(priorPath, currentPath); err != nil {
					log.Fatalf("Failed to carry file forward to new schema version: %v", err)
				}
				log.Println("✓ Carried encrypted file forward to current schema version")
			}
		} else {
			log.Fatalf("No store file found at %s or %s", currentPath, priorPath)
		}
	}

	if *dryRun {
		log.Println("\n[DRY RUN] Would back up the encrypted file, then open and close the store to run its")
		log.Println("[DRY RUN] additive schema migration (new columns only, no data loss).")
		log.Println("\nDry run completed. No changes made.")
		return
	}

	backupFile := *backupPath
	if backupFile == "" {
		backupFile = currentPath + ".backup"
	}
	log.Printf("Creating backup: %s", backupFile)
	if err := copyFile(currentPath, backupFile); err != nil {
		log.Fatalf("Failed to create backup: %v", err)
	}
	log.Println("✓ Backup created successfully")

	store, err := storage.Open(*dataDir, *email, pass, coordinator.NoopCoordinator{}, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Fatalf("Failed to close store after migration: %v", err)
	}

	log.Println("\n✓ Migration completed successfully!")
	log.Printf("If anything looks wrong, restore from: %s", backupFile)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
