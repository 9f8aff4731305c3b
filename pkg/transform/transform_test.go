package transform

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

func TestHeartbeatCoalesceScenario(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e1 := mustEvent(t, base, 5*time.Second, map[string]any{"app": "code", "title": "main.rs"})
	e2 := mustEvent(t, base.Add(30*time.Second), 5*time.Second, map[string]any{"app": "code", "title": "main.rs"})

	reduced := HeartbeatReduce([]*model.Event{e1, e2}, 70*time.Second)
	require.Len(t, reduced, 1)
	assert.Equal(t, 35*time.Second, reduced[0].Duration)
}

func TestHeartbeatReduceNeverShrinksCoverage(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []*model.Event{
		mustEvent(t, base, time.Second, map[string]any{"app": "a"}),
		mustEvent(t, base.Add(2*time.Second), time.Second, map[string]any{"app": "b"}),
		mustEvent(t, base.Add(5*time.Second), time.Second, map[string]any{"app": "a"}),
	}
	before := SumDurations(events)
	after := SumDurations(HeartbeatReduce(events, 70*time.Second))
	assert.GreaterOrEqual(t, after, before)
}

func TestUnionNoOverlapScenario(t *testing.T) {
	a := []*model.Event{
		mustEvent(t, time.Unix(0, 0).UTC(), 3*time.Second, map[string]any{"src": "a"}),
		mustEvent(t, time.Unix(5, 0).UTC(), 3*time.Second, map[string]any{"src": "a"}),
	}
	b := []*model.Event{
		mustEvent(t, time.Unix(2, 0).UTC(), 3*time.Second, map[string]any{"src": "b"}),
		mustEvent(t, time.Unix(7, 0).UTC(), 2*time.Second, map[string]any{"src": "b"}),
	}
	result := UnionNoOverlap(a, b)

	type iv struct {
		start, end int64
		src        string
	}
	got := make([]iv, len(result))
	for i, e := range result {
		got[i] = iv{e.Timestamp.Unix(), e.End().Unix(), e.Data["src"].(string)}
	}
	want := []iv{
		{0, 3, "a"},
		{3, 5, "b"},
		{5, 8, "a"},
		{8, 9, "b"},
	}
	assert.Equal(t, want, got)
}

func TestUnionNoOverlapPreservesA(t *testing.T) {
	a := []*model.Event{mustEvent(t, time.Unix(0, 0).UTC(), 10*time.Second, map[string]any{"src": "a"})}
	b := []*model.Event{mustEvent(t, time.Unix(3, 0).UTC(), 2*time.Second, map[string]any{"src": "b"})}
	result := UnionNoOverlap(a, b)
	at := time.Unix(1, 0).UTC()
	var covered bool
	for _, e := range result {
		if !at.Before(e.Timestamp) && at.Before(e.End()) {
			covered = covered || e.Data["src"] == "a"
		}
	}
	assert.True(t, covered)
}

func TestSimplifyTitleScenario(t *testing.T) {
	e := mustEvent(t, time.Now(), 0, map[string]any{"app": "vscode", "title": "● main.rs — project"})
	out := SimplifyString([]*model.Event{e}, "title")
	assert.Equal(t, "main.rs — project", out[0].Data["title"])
}

func TestCategorizeDefaultsToUncategorized(t *testing.T) {
	e := mustEvent(t, time.Now(), 0, map[string]any{"app": "x"})
	rule, err := NewRule(nil, false, "nomatch")
	require.NoError(t, err)
	out := Categorize([]*model.Event{e}, []CategoryClass{{Category: Category{"Work"}, Rule: rule}})
	assert.Equal(t, Category{"Uncategorized"}, out[0].Data["$category"])
}

func TestFilterPeriodIntersectCommutativeOnIntervals(t *testing.T) {
	a := []*model.Event{mustEvent(t, time.Unix(0, 0).UTC(), 10*time.Second, map[string]any{})}
	b := []*model.Event{mustEvent(t, time.Unix(5, 0).UTC(), 10*time.Second, map[string]any{})}

	ab := FilterPeriodIntersect(a, b)
	ba := FilterPeriodIntersect(b, a)
	require.Len(t, ab, 1)
	require.Len(t, ba, 1)
	assert.True(t, ab[0].Timestamp.Equal(ba[0].Timestamp))
	assert.Equal(t, ab[0].Duration, ba[0].Duration)
}

func TestPeriodUnionIdempotent(t *testing.T) {
	a := []*model.Event{mustEvent(t, time.Unix(0, 0).UTC(), 10*time.Second, map[string]any{})}
	b := []*model.Event{mustEvent(t, time.Unix(5, 0).UTC(), 10*time.Second, map[string]any{})}

	once := PeriodUnion(a, b)
	twice := PeriodUnion(once, nil)
	require.Len(t, once, 1)
	require.Len(t, twice, 1)
	assert.True(t, once[0].Timestamp.Equal(twice[0].Timestamp))
	assert.Equal(t, once[0].Duration, twice[0].Duration)
}
