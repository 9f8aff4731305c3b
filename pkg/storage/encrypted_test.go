package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sundial/pkg/coordinator"
	"github.com/cuemby/sundial/pkg/model"
)

func openTestStore(t *testing.T) *EncryptedStore {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, "student@example.com", "correct horse battery staple", coordinator.NoopCoordinator{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEncryptedStoreOpenSeedsDefaultSettings(t *testing.T) {
	s := openTestStore(t)
	setting, ok, err := s.RetrieveSetting(model.SettingTimeZone)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "+00:00", setting.Value)

	_, ok, err = s.RetrieveSetting(model.SettingWeekdaysSchedule)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEncryptedStoreBucketCRUD(t *testing.T) {
	s := openTestStore(t)
	b := model.NewBucket("aw-watcher-window_host", "currentwindow", "test", "host", "", map[string]any{"k": "v"})
	require.NoError(t, s.CreateBucket(b))

	md, err := s.GetMetadata(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, md.ID)
	assert.Equal(t, "currentwindow", md.Type)

	require.NoError(t, s.UpdateBucket(b.ID, map[string]any{"name": "renamed"}))
	md, err = s.GetMetadata(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", md.Name)

	require.NoError(t, s.DeleteBucket(b.ID))
	_, err = s.GetMetadata(b.ID)
	assert.Error(t, err)
}

// TestEncryptedStoreHeartbeatCoalesce matches the dedicated-scenario example:
// inserting two heartbeats 30s apart for the same (application_name, title)
// within the 70s window collapses to a single event whose duration is the
// sum of both.
func TestEncryptedStoreHeartbeatCoalesce(t *testing.T) {
	s := openTestStore(t)
	b := model.NewBucket("aw-watcher-window_host", "currentwindow", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(b))

	base := time.Now().UTC()
	data := map[string]any{"app": "code", "title": "main.rs"}

	first, err := s.InsertOne(b.ID, mustEvent(t, base, 5*time.Second, data))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.InsertOne(b.ID, mustEvent(t, base.Add(30*time.Second), 5*time.Second, data))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 10*time.Second, second.Duration)

	count, err := s.GetEventCount(b.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEncryptedStoreInsertOneDropsMissingTitleOrApp(t *testing.T) {
	s := openTestStore(t)
	b := model.NewBucket("aw-watcher-afk_host", "afkstatus", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(b))

	stored, err := s.InsertOne(b.ID, mustEvent(t, time.Now(), time.Second, map[string]any{"status": "afk"}))
	require.NoError(t, err)
	assert.Nil(t, stored)

	count, err := s.GetEventCount(b.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEncryptedStoreInsertOneUpsertsApplication(t *testing.T) {
	s := openTestStore(t)
	b := model.NewBucket("aw-watcher-window_host", "currentwindow", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(b))

	_, err := s.InsertOne(b.ID, mustEvent(t, time.Now(), time.Second, map[string]any{"app": "code", "title": "main.rs"}))
	require.NoError(t, err)

	apps, err := s.RetrieveApplications()
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "code", apps[0].Name)
}

func TestEncryptedStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, "student@example.com", "correct horse battery staple", coordinator.NoopCoordinator{}, nil)
	require.NoError(t, err)
	b := model.NewBucket("aw-watcher-window_host", "currentwindow", "test", "host", "", nil)
	require.NoError(t, s1.CreateBucket(b))
	_, err = s1.InsertOne(b.ID, mustEvent(t, time.Now(), time.Second, map[string]any{"app": "code", "title": "main.rs"}))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, filepath.Base(entries[0].Name()), "sundial-sqlite-")

	s2, err := Open(dir, "student@example.com", "correct horse battery staple", coordinator.NoopCoordinator{}, nil)
	require.NoError(t, err)
	defer s2.Close()

	count, err := s2.GetEventCount(b.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEncryptedStoreOpenRejectsWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, "student@example.com", "correct horse battery staple", coordinator.NoopCoordinator{}, nil)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	_, err = Open(dir, "student@example.com", "wrong passphrase", coordinator.NoopCoordinator{}, nil)
	assert.Error(t, err)
}
