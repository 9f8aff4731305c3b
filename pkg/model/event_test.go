package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventDerivesApplicationName(t *testing.T) {
	e, err := NewEvent(time.Now(), 5*time.Second, map[string]any{"app": "code.exe", "title": "main.rs"})
	require.NoError(t, err)
	assert.Equal(t, "code", e.ApplicationName)
}

func TestNewEventURLTakesPrecedence(t *testing.T) {
	e, err := NewEvent(time.Now(), 0, map[string]any{"app": "firefox", "url": "https://sub.example.com/path"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", e.ApplicationName)
}

func TestNewEventRejectsNegativeDuration(t *testing.T) {
	_, err := NewEvent(time.Now(), -time.Second, map[string]any{"app": "x"})
	require.Error(t, err)
}

func TestEventEqualityIgnoresID(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewEvent(ts, time.Second, map[string]any{"app": "x", "title": "y"})
	require.NoError(t, err)
	b, err := NewEvent(ts, time.Second, map[string]any{"app": "x", "title": "y"})
	require.NoError(t, err)
	a.ID = 1
	b.ID = 42
	assert.True(t, a.Equal(b))
}

func TestEventOrderingByTimestampOnly(t *testing.T) {
	early, _ := NewEvent(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, nil)
	late, _ := NewEvent(time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), 0, nil)
	assert.True(t, early.Less(late))
	assert.False(t, late.Less(early))
}

func TestEventJSONRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 123_000_000, time.UTC)
	e, err := NewEvent(ts, 2500*time.Millisecond, map[string]any{"app": "x", "title": "y"})
	require.NoError(t, err)
	e.ID = 7

	b, err := e.MarshalJSON()
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, decoded.UnmarshalJSON(b))
	assert.Equal(t, e.ID, decoded.ID)
	assert.True(t, e.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, e.Duration, decoded.Duration)
	assert.Equal(t, e.ApplicationName, decoded.ApplicationName)
}

func TestTimestampCanonicalisation(t *testing.T) {
	e, err := NewEvent(time.Date(2024, 1, 1, 0, 0, 0, 999_999, time.UTC), 0, nil)
	require.NoError(t, err)
	assert.Zero(t, e.Timestamp.Nanosecond()%int(time.Millisecond))
}
