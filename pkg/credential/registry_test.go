package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRememberAndLastEmail(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	require.NoError(t, err)
	defer reg.Close()

	email, err := reg.LastEmail()
	require.NoError(t, err)
	assert.Equal(t, "", email)

	require.NoError(t, reg.Remember("a@example.com"))
	email, err = reg.LastEmail()
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)
}

func TestRegistryForgetClearsLastEmail(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	require.NoError(t, err)
	defer reg.Close()

	require.NoError(t, reg.Remember("a@example.com"))
	require.NoError(t, reg.Forget())

	email, err := reg.LastEmail()
	require.NoError(t, err)
	assert.Equal(t, "", email)
}

func TestRegistryPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	require.NoError(t, err)
	require.NoError(t, reg.Remember("a@example.com"))
	require.NoError(t, reg.Close())

	reg2, err := OpenRegistry(dir)
	require.NoError(t, err)
	defer reg2.Close()
	email, err := reg2.LastEmail()
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)
}

func TestRemoveStaleFileIgnoresMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := RemoveStaleFile(dir, "ghost@example.com", 2)
	assert.NoError(t, err)
}

func TestRemoveStaleFileDeletesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sundial-sqlite-a@example.com.v2.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	require.NoError(t, RemoveStaleFile(dir, "a@example.com", 2))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
