package credential

import (
	"errors"
	"fmt"

	"github.com/cuemby/sundial/pkg/autostart"
	"github.com/cuemby/sundial/pkg/coordinator"
	"github.com/cuemby/sundial/pkg/log"
	"github.com/cuemby/sundial/pkg/metrics"
	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/cuemby/sundial/pkg/storage"
)

// credentialService is the fixed logical service name the identity provider
// publishes its blob under, and cacheKey is the process-wide cache slot for
// the decoded blob.
const (
	credentialService = "SD_KEYS"
	cacheKey          = "sundial"
)

// Gate implements the open protocol's steps 1-2: fetch (encrypted_db_key,
// user_email) and the local user_key, decrypt to a passphrase, and hand the
// result to storage.Open. It owns the identity registry used to detect
// identity change and remove stale per-user files.
type Gate struct {
	secrets  SecretStore
	cache    *Cache
	registry *Registry
	dataDir  string
	agent    autostart.Agent
}

// NewGate returns a Gate rooted at dataDir, using secrets as the OS secret
// store. Pass credential.KeyringSecretStore{} in production. agent may be
// nil, in which case Open skips steps 5 and 6's autostart wiring (see
// storage.Open).
func NewGate(dataDir string, secrets SecretStore, agent autostart.Agent) (*Gate, error) {
	reg, err := OpenRegistry(dataDir)
	if err != nil {
		return nil, err
	}
	return &Gate{
		secrets:  secrets,
		cache:    NewCache(),
		registry: reg,
		dataDir:  dataDir,
		agent:    agent,
	}, nil
}

// Close releases the Gate's registry handle. It does not close any store
// previously returned by Open.
func (g *Gate) Close() error {
	return g.registry.Close()
}

// UseCache replaces the Gate's credential cache, letting a caller apply
// pkg/config's credential_cache_max_entries/credential_cache_ttl overrides
// before the first Open. Safe to call only before Open is first invoked.
func (g *Gate) UseCache(c *Cache) {
	g.cache = c
}

// Logout clears the cached credential blob, per the source's explicit
// clear_all_credentials-on-logout behaviour.
func (g *Gate) Logout() {
	g.cache.Clear()
}

// Open runs the full credential-gated open protocol and returns a ready
// EncryptedStore, or sderr.ErrNotReady if credentials are missing or
// undecryptable. coord is passed through to storage.Open for the
// stop-all/start-all-modules step on identity or schema change.
func (g *Gate) Open(coord coordinator.ModuleCoordinator) (*storage.EncryptedStore, error) {
	blob, err := g.fetchBlob()
	if err != nil {
		if errors.Is(err, sderr.ErrNotReady) {
			metrics.NotReadyTotal.Inc()
			if staleErr := g.handleAbsentCredentials(); staleErr != nil {
				log.Errorf("remove stale per-user file", staleErr)
			}
		}
		return nil, err
	}

	passphrase, err := decryptDBKey(blob.EncryptedDBKey, blob.UserKey)
	if err != nil {
		log.Errorf("decrypt database passphrase", err)
		metrics.NotReadyTotal.Inc()
		return nil, fmt.Errorf("%w: %v", sderr.ErrNotReady, err)
	}

	if err := g.handleIdentityChange(blob.Email); err != nil {
		log.Errorf("apply identity change", err)
	}

	store, err := storage.Open(g.dataDir, blob.Email, passphrase, coord, g.agent)
	if err != nil {
		return nil, err
	}
	if err := g.registry.Remember(blob.Email); err != nil {
		log.Errorf("record open identity", err)
	}
	return store, nil
}

// fetchBlob returns the cached credential blob, refilling from the OS
// secret store on miss. A missing secret or an absent user key both surface
// as sderr.ErrNotReady per step 1 of the open protocol.
func (g *Gate) fetchBlob() (*Blob, error) {
	if cached, ok := g.cache.Get(cacheKey); ok {
		metrics.CredentialCacheHitsTotal.Inc()
		return cached.(*Blob), nil
	}
	metrics.CredentialCacheMissesTotal.Inc()

	raw, err := g.secrets.Get(credentialService)
	if errors.Is(err, ErrSecretNotFound) {
		return nil, sderr.ErrNotReady
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrNotReady, err)
	}

	blob, err := decodeBlob(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrNotReady, err)
	}
	if blob.UserKey == "" || blob.Email == "" {
		return nil, sderr.ErrNotReady
	}

	g.cache.Set(cacheKey, blob)
	return blob, nil
}

// handleAbsentCredentials erases any stale per-user file left from the last
// known identity, per step 1: "if either is absent, erase any stale
// per-user file on disk."
func (g *Gate) handleAbsentCredentials() error {
	email, err := g.registry.LastEmail()
	if err != nil {
		return err
	}
	if email == "" {
		return nil
	}
	if err := RemoveStaleFile(g.dataDir, email, storage.SchemaVersion); err != nil {
		return err
	}
	return g.registry.Forget()
}

// handleIdentityChange removes the previous identity's database file when
// the newly authenticated email differs from the last one the registry
// recorded, so a shared machine never leaves one user's decrypted file
// reachable under another user's open.
func (g *Gate) handleIdentityChange(newEmail string) error {
	lastEmail, err := g.registry.LastEmail()
	if err != nil {
		return err
	}
	if lastEmail == "" || lastEmail == newEmail {
		return nil
	}
	return RemoveStaleFile(g.dataDir, lastEmail, storage.SchemaVersion)
}
