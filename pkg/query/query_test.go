package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sundial/pkg/model"
	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/cuemby/sundial/pkg/storage"
	"github.com/cuemby/sundial/pkg/transform"
)

func newTestStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	require.NoError(t, s.CreateBucket(model.NewBucket("aw-watcher-window_host", "currentwindow", "aw-watcher-window", "host", "", nil)))
	return s
}

func insertEvent(t *testing.T, s *storage.MemoryStore, bucketID string, ts time.Time, dur time.Duration, data map[string]any) {
	t.Helper()
	e, err := model.NewEvent(ts, dur, data)
	require.NoError(t, err)
	_, err = s.InsertOne(bucketID, e)
	require.NoError(t, err)
}

func namespaceFor(start, end time.Time) Namespace {
	return Namespace{
		"STARTTIME": start.Format(time.RFC3339Nano),
		"ENDTIME":   end.Format(time.RFC3339Nano),
	}
}

func TestQueryBucketReturnsEventsInWindow(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	insertEvent(t, s, "aw-watcher-window_host", base, 5*time.Second, map[string]any{"app": "code", "title": "main.rs"})

	ns := namespaceFor(base.Add(-time.Hour), base.Add(time.Hour))
	r := NewRegistry(s, ns)

	result, err := r.Call("query_bucket", []any{"aw-watcher-window_host"})
	require.NoError(t, err)
	events := result.([]*model.Event)
	require.Len(t, events, 1)
	assert.Equal(t, "code", events[0].App)
}

func TestQueryBucketMissingBucketIsQueryError(t *testing.T) {
	s := newTestStore(t)
	ns := namespaceFor(time.Now().Add(-time.Hour), time.Now())
	r := NewRegistry(s, ns)

	_, err := r.Call("query_bucket", []any{"does-not-exist"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sderr.ErrQueryBucketMissing)
}

func TestQueryBucketEventcount(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	insertEvent(t, s, "aw-watcher-window_host", base, time.Second, map[string]any{"app": "a", "title": "t1"})
	insertEvent(t, s, "aw-watcher-window_host", base.Add(time.Minute), time.Second, map[string]any{"app": "b", "title": "t2"})

	ns := namespaceFor(base.Add(-time.Hour), base.Add(time.Hour))
	r := NewRegistry(s, ns)

	result, err := r.Call("query_bucket_eventcount", []any{"aw-watcher-window_host"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.(int))
}

func TestFindBucketMatchesSubstring(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, Namespace{})

	result, err := r.Call("find_bucket", []any{"window"})
	require.NoError(t, err)
	assert.Equal(t, "aw-watcher-window_host", result)
}

func TestFindBucketNoMatchIsQueryError(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, Namespace{})

	_, err := r.Call("find_bucket", []any{"no-such-watcher"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sderr.ErrQueryBucketMissing)
}

func TestCallTypeMismatchReportsExpectedType(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, Namespace{})

	_, err := r.Call("limit_events", []any{"not-events", 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, sderr.ErrQueryTypeMismatch)
}

func TestCallUnknownFunctionErrors(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, Namespace{})

	_, err := r.Call("does_not_exist", nil)
	require.Error(t, err)
}

func TestSortByTimestampDispatchesToTransform(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, Namespace{})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e1, _ := model.NewEvent(base.Add(time.Minute), time.Second, nil)
	e2, _ := model.NewEvent(base, time.Second, nil)

	result, err := r.Call("sort_by_timestamp", []any{[]*model.Event{e1, e2}})
	require.NoError(t, err)
	sorted := result.([]*model.Event)
	require.Len(t, sorted, 2)
	assert.True(t, sorted[0].Timestamp.Before(sorted[1].Timestamp))
}

func TestCategorizeDispatchesToTransform(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, Namespace{})

	e, _ := model.NewEvent(time.Now(), 0, map[string]any{"app": "code"})
	rule, err := transform.NewRule([]string{"app"}, false, "code")
	require.NoError(t, err)
	classes := []transform.CategoryClass{{Category: transform.Category{"Dev"}, Rule: rule}}

	result, err := r.Call("categorize", []any{[]*model.Event{e}, classes})
	require.NoError(t, err)
	events := result.([]*model.Event)
	assert.Equal(t, transform.Category{"Dev"}, events[0].Data["$category"])
}

func TestNopReturnsOne(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, Namespace{})

	result, err := r.Call("nop", []any{})
	require.NoError(t, err)
	assert.Equal(t, 1, result)
}
