package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/sundial/pkg/coordinator"
	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySecretStore is an in-memory SecretStore stub for tests, since the
// real platform keychain isn't available in a headless test run.
type memorySecretStore struct {
	values map[string]string
}

func newMemorySecretStore() *memorySecretStore {
	return &memorySecretStore{values: make(map[string]string)}
}

func (m *memorySecretStore) Get(service string) (string, error) {
	v, ok := m.values[service]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (m *memorySecretStore) Set(service, value string) error {
	m.values[service] = value
	return nil
}

func (m *memorySecretStore) Exists(service string) (bool, error) {
	_, ok := m.values[service]
	return ok, nil
}

func (m *memorySecretStore) Delete(service string) error {
	delete(m.values, service)
	return nil
}

var _ SecretStore = (*memorySecretStore)(nil)

// sealBlob encrypts passphrase under userKey (raw 32 bytes) the same way
// decryptDBKey expects to invert, and returns a ready-to-store Blob JSON.
func sealBlob(t *testing.T, email, passphrase string) (string, []byte) {
	t.Helper()
	userKey := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, userKey)
	require.NoError(t, err)

	block, err := aes.NewCipher(userKey)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := make([]byte, gcm.NonceSize())
	_, err = io.ReadFull(rand.Reader, nonce)
	require.NoError(t, err)
	ciphertext := gcm.Seal(nonce, nonce, []byte(passphrase), nil)

	blob := Blob{
		EncryptedDBKey: base64.URLEncoding.EncodeToString(ciphertext),
		UserKey:        base64.URLEncoding.EncodeToString(userKey),
		Email:          email,
	}
	raw, err := json.Marshal(blob)
	require.NoError(t, err)
	return string(raw), userKey
}

func TestGateOpenReturnsNotReadyWhenSecretMissing(t *testing.T) {
	gate, err := NewGate(t.TempDir(), newMemorySecretStore(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { gate.Close() })

	_, err = gate.Open(coordinator.NoopCoordinator{})
	assert.ErrorIs(t, err, sderr.ErrNotReady)
}

func TestGateOpenSucceedsWithValidCredentials(t *testing.T) {
	dataDir := t.TempDir()
	secrets := newMemorySecretStore()
	raw, _ := sealBlob(t, "student@example.com", "correct horse battery staple")
	require.NoError(t, secrets.Set(credentialService, raw))

	gate, err := NewGate(dataDir, secrets, nil)
	require.NoError(t, err)
	t.Cleanup(func() { gate.Close() })

	store, err := gate.Open(coordinator.NoopCoordinator{})
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	email, err := gate.registry.LastEmail()
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", email)
}

func TestGateOpenCachesBlobAcrossCalls(t *testing.T) {
	dataDir := t.TempDir()
	secrets := newMemorySecretStore()
	raw, _ := sealBlob(t, "student@example.com", "correct horse battery staple")
	require.NoError(t, secrets.Set(credentialService, raw))

	gate, err := NewGate(dataDir, secrets, nil)
	require.NoError(t, err)
	t.Cleanup(func() { gate.Close() })

	store1, err := gate.Open(coordinator.NoopCoordinator{})
	require.NoError(t, err)
	store1.Close()

	// Remove the secret; a cached blob should still let Open succeed.
	require.NoError(t, secrets.Delete(credentialService))

	store2, err := gate.Open(coordinator.NoopCoordinator{})
	require.NoError(t, err)
	store2.Close()
}

func TestGateOpenErasesStaleFileWhenCredentialsGoAbsent(t *testing.T) {
	dataDir := t.TempDir()
	secrets := newMemorySecretStore()
	raw, _ := sealBlob(t, "student@example.com", "correct horse battery staple")
	require.NoError(t, secrets.Set(credentialService, raw))

	gate, err := NewGate(dataDir, secrets, nil)
	require.NoError(t, err)
	t.Cleanup(func() { gate.Close() })

	store, err := gate.Open(coordinator.NoopCoordinator{})
	require.NoError(t, err)
	store.Close()

	stalePath := filepath.Join(dataDir, "sundial-sqlite-student@example.com.v2.db")
	_, statErr := os.Stat(stalePath)
	require.NoError(t, statErr)

	gate.Logout()
	require.NoError(t, secrets.Delete(credentialService))

	_, err = gate.Open(coordinator.NoopCoordinator{})
	assert.ErrorIs(t, err, sderr.ErrNotReady)

	_, statErr = os.Stat(stalePath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "stale per-user file should have been removed")
}

func TestDecryptDBKeyRejectsWrongUserKey(t *testing.T) {
	_, userKey := sealBlob(t, "a@example.com", "secret-passphrase")
	wrongKey := make([]byte, 32)
	copy(wrongKey, userKey)
	wrongKey[0] ^= 0xFF

	raw, _ := sealBlob(t, "a@example.com", "secret-passphrase")
	var blob Blob
	require.NoError(t, json.Unmarshal([]byte(raw), &blob))

	_, err := decryptDBKey(blob.EncryptedDBKey, base64.URLEncoding.EncodeToString(wrongKey))
	assert.Error(t, err)
}
