package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Blob is the JSON payload the identity provider returns via the OS secret
// store: the database key encrypted under the device-local user key, the
// account email, and the user key itself.
type Blob struct {
	EncryptedDBKey string `json:"encrypted_db_key"`
	UserKey        string `json:"user_key"`
	Email          string `json:"email"`
}

// decodeBlob parses the JSON credential payload fetched from SecretStore.
func decodeBlob(raw string) (*Blob, error) {
	var b Blob
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("credential: decode credential blob: %w", err)
	}
	return &b, nil
}

// decryptDBKey decrypts encryptedDBKey (base64 urlsafe AES-GCM ciphertext,
// nonce prepended) with userKey (base64 urlsafe AES-256 key material) to
// recover the database passphrase. The identity provider that issues these
// two values is out of scope; this only needs to invert whatever symmetric
// scheme it uses, so it mirrors the AES-GCM whole-blob scheme storage/crypto.go
// already uses for the on-disk file rather than introducing a second one.
func decryptDBKey(encryptedDBKey, userKey string) (string, error) {
	key, err := base64.URLEncoding.DecodeString(userKey)
	if err != nil {
		return "", fmt.Errorf("credential: decode user key: %w", err)
	}
	ciphertext, err := base64.URLEncoding.DecodeString(encryptedDBKey)
	if err != nil {
		return "", fmt.Errorf("credential: decode encrypted db key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("credential: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("credential: init gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("credential: encrypted db key truncated")
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("credential: decrypt db key (auth failure): %w", err)
	}
	return string(plaintext), nil
}
