// Package credential implements the CredentialGate boundary: fetching and
// caching identity-linked secrets from the OS secret store, decrypting the
// database passphrase, and driving storage.Open's per-identity file
// lifecycle (stale-file removal, reopen on identity change).
package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// account is the fixed keyring account name every credential blob is stored
// under, regardless of logical service. The source pins this identically
// across platforms rather than keying on the OS username.
const account = "com.ralvie.sundial"

// ErrSecretNotFound means the OS secret store has no entry for a service.
var ErrSecretNotFound = errors.New("credential: secret not found")

// SecretStore is the abstract OS keychain/credential-manager surface.
type SecretStore interface {
	Get(service string) (string, error)
	Set(service, value string) error
	Exists(service string) (bool, error)
	Delete(service string) error
}

// KeyringSecretStore is a SecretStore backed by the platform keychain
// (macOS Keychain, Windows Credential Manager, Secret Service on Linux).
type KeyringSecretStore struct{}

func (KeyringSecretStore) Get(service string) (string, error) {
	v, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credential: keyring get %q: %w", service, err)
	}
	return v, nil
}

func (KeyringSecretStore) Set(service, value string) error {
	if err := keyring.Set(service, account, value); err != nil {
		return fmt.Errorf("credential: keyring set %q: %w", service, err)
	}
	return nil
}

func (KeyringSecretStore) Exists(service string) (bool, error) {
	_, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credential: keyring get %q: %w", service, err)
	}
	return true, nil
}

func (KeyringSecretStore) Delete(service string) error {
	err := keyring.Delete(service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("credential: keyring delete %q: %w", service, err)
	}
	return nil
}

var _ SecretStore = KeyringSecretStore{}
