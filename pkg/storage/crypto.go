package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/scrypt"
)

const scryptKeyLen = 32 // AES-256

// deriveKey derives a 32-byte AES-256 key from a low-entropy database
// passphrase via scrypt, salted by the user's email (stable per-identity,
// unique per-user). This mirrors the shape of
// security.NewSecretsManagerFromPassword elsewhere in this codebase,
// swapped to a slower KDF appropriate for a passphrase.
func deriveKey(passphrase, salt string) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), []byte(salt), 1<<15, 8, 1, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("storage: derive key: %w", err)
	}
	return key, nil
}

// encryptFile reads plainPath, encrypts it whole with AES-256-GCM, and
// writes the result to encPath (nonce prepended to ciphertext).
func encryptFile(plainPath, encPath string, key []byte) error {
	plaintext, err := os.ReadFile(plainPath)
	if err != nil {
		return fmt.Errorf("storage: read plaintext store: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("storage: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("storage: init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("storage: generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	tmp := encPath + ".tmp"
	if err := os.WriteFile(tmp, ciphertext, 0600); err != nil {
		return fmt.Errorf("storage: write encrypted store: %w", err)
	}
	return os.Rename(tmp, encPath)
}

// decryptFile decrypts encPath (if it exists) into plainPath. If encPath
// does not exist, plainPath is left untouched so the sqlite driver creates a
// fresh database file there.
func decryptFile(encPath, plainPath string, key []byte) error {
	ciphertext, err := os.ReadFile(encPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read encrypted store: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("storage: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("storage: init gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return fmt.Errorf("storage: encrypted store truncated")
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return fmt.Errorf("storage: decrypt store (wrong passphrase or corrupt file): %w", err)
	}
	return os.WriteFile(plainPath, plaintext, 0600)
}
