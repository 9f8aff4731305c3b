package credential

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/sundial/pkg/metrics"
)

const registryBucket = "identities"

// Registry records the email whose per-user database file was opened last,
// so Gate can tell identity change from first-open and remove a stale
// per-user file when credentials go absent. It holds that one email only,
// not a map of every email to its file. Backed by a single small
// BoltDB file rather than re-deriving this from directory listings.
type Registry struct {
	db *bolt.DB
}

// OpenRegistry opens (creating if needed) the registry file under dataDir.
func OpenRegistry(dataDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("credential: ensure registry dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dataDir, "identities.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("credential: open registry: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(registryBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("credential: init registry bucket: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the underlying registry file.
func (r *Registry) Close() error {
	return r.db.Close()
}

// LastEmail returns the email the registry last recorded as open, or "" if
// none is recorded.
func (r *Registry) LastEmail() (string, error) {
	var email string
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(registryBucket))
		email = string(b.Get([]byte("last_email")))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("credential: read last email: %w", err)
	}
	return email, nil
}

// Remember records email as the currently open identity.
func (r *Registry) Remember(email string) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(registryBucket))
		return b.Put([]byte("last_email"), []byte(email))
	})
	if err != nil {
		return fmt.Errorf("credential: remember email: %w", err)
	}
	return nil
}

// Forget clears the recorded identity, leaving the registry as if no
// identity had ever opened.
func (r *Registry) Forget() error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(registryBucket))
		return b.Delete([]byte("last_email"))
	})
	if err != nil {
		return fmt.Errorf("credential: forget email: %w", err)
	}
	return nil
}

// RemoveStaleFile deletes the per-user database file for email under
// dataDir, matching the naming EncryptedStore.Open uses, and ignores a
// missing file.
func RemoveStaleFile(dataDir, email string, schemaVersion int) error {
	path := filepath.Join(dataDir, fmt.Sprintf("sundial-sqlite-%s.v%d.db", email, schemaVersion))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("credential: remove stale file %s: %w", path, err)
	}
	metrics.StaleFilesRemovedTotal.Inc()
	return nil
}
