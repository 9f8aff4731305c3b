package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sundial/pkg/model"
)

func mustEvent(t *testing.T, ts time.Time, dur time.Duration, data map[string]any) *model.Event {
	t.Helper()
	e, err := model.NewEvent(ts, dur, data)
	require.NoError(t, err)
	return e
}

func TestMemoryStoreInsertAssignsIncrementingIDs(t *testing.T) {
	s := NewMemoryStore()
	b := model.NewBucket("b1", "currentwindow", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(b))

	base := time.Now()
	first, err := s.InsertOne("b1", mustEvent(t, base, time.Second, map[string]any{"app": "code", "title": "main.rs"}))
	require.NoError(t, err)
	second, err := s.InsertOne("b1", mustEvent(t, base.Add(time.Minute), time.Second, map[string]any{"app": "code", "title": "main.rs"}))
	require.NoError(t, err)

	assert.Equal(t, int64(0), first.ID)
	assert.Equal(t, int64(1), second.ID)
}

func TestMemoryStoreGetEventsTrimsPartialOverlap(t *testing.T) {
	s := NewMemoryStore()
	b := model.NewBucket("b1", "currentwindow", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(b))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.InsertOne("b1", mustEvent(t, base, 10*time.Second, map[string]any{"app": "code", "title": "main.rs"}))
	require.NoError(t, err)

	start := base.Add(5 * time.Second)
	events, err := s.GetEvents("b1", -1, &start, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, start, events[0].Timestamp)
	assert.Equal(t, 5*time.Second, events[0].Duration)
}

func TestMemoryStoreReplaceLastPicksGreatestTimestamp(t *testing.T) {
	s := NewMemoryStore()
	b := model.NewBucket("b1", "currentwindow", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(b))

	base := time.Now()
	_, err := s.InsertOne("b1", mustEvent(t, base, time.Second, map[string]any{"app": "code", "title": "a"}))
	require.NoError(t, err)
	_, err = s.InsertOne("b1", mustEvent(t, base.Add(time.Minute), time.Second, map[string]any{"app": "code", "title": "b"}))
	require.NoError(t, err)

	replacement := mustEvent(t, base.Add(time.Minute), 5*time.Second, map[string]any{"app": "code", "title": "replaced"})
	require.NoError(t, s.ReplaceLast("b1", replacement))

	events, err := s.GetEvents("b1", -1, nil, nil)
	require.NoError(t, err)
	var found bool
	for _, e := range events {
		if e.Title == "replaced" {
			found = true
			assert.Equal(t, 5*time.Second, e.Duration)
		}
	}
	assert.True(t, found)
}

func TestMemoryStoreIsBlockedMatchesAppOrHost(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.SaveApplication(&model.Application{Type: model.ApplicationTypeApp, Name: "Slack", IsBlocked: true})
	require.NoError(t, err)
	_, err = s.SaveApplication(&model.Application{Type: model.ApplicationTypeWeb, URL: "reddit.com", IsBlocked: true})
	require.NoError(t, err)

	blocked, err := s.IsBlocked("Slack", "")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = s.IsBlocked("", "https://reddit.com/r/golang")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = s.IsBlocked("Terminal", "https://github.com")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestMemoryStoreGetMostUsedAppsExcludesAFKAndShortEvents(t *testing.T) {
	s := NewMemoryStore()
	b := model.NewBucket("window", "currentwindow", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(b))
	afk := model.NewBucket("afk", "afkstatus", "test", "host", "", nil)
	require.NoError(t, s.CreateBucket(afk))

	start := time.Now()
	_, err := s.InsertOne("window", mustEvent(t, start, time.Minute, map[string]any{"app": "code", "title": "main.rs"}))
	require.NoError(t, err)
	_, err = s.InsertOne("window", mustEvent(t, start.Add(2*time.Minute), 5*time.Second, map[string]any{"app": "code", "title": "short.rs"}))
	require.NoError(t, err)
	_, err = s.InsertOne("afk", mustEvent(t, start, time.Hour, map[string]any{"app": "afkwatcher", "title": "afk", "status": "afk"}))
	require.NoError(t, err)

	usage, err := s.GetMostUsedApps(start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, "code", usage[0].App)
	assert.Equal(t, int64(60), usage[0].TotalDuration)
}
