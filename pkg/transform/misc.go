package transform

import (
	"sort"
	"time"

	"github.com/cuemby/sundial/pkg/model"
)

// SortByTimestamp returns events sorted ascending by timestamp.
func SortByTimestamp(events []*model.Event) []*model.Event {
	return sortByTimestampStable(events)
}

// SortByDuration returns events sorted ascending by duration.
func SortByDuration(events []*model.Event) []*model.Event {
	out := make([]*model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Duration < out[j].Duration })
	return out
}

// LimitEvents returns at most limit events (0 returns none, negative returns
// all), matching the §4.3 limit semantics.
func LimitEvents(events []*model.Event, limit int) []*model.Event {
	switch {
	case limit == 0:
		return []*model.Event{}
	case limit < 0 || limit >= len(events):
		return events
	default:
		return events[:limit]
	}
}

// Concat appends every list in order.
func Concat(lists ...[]*model.Event) []*model.Event {
	var out []*model.Event
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// SumDurations returns the sum of every event's duration.
func SumDurations(events []*model.Event) time.Duration {
	var total time.Duration
	for _, e := range events {
		total += e.Duration
	}
	return total
}

// Flood extends each event's duration to fill the gap to the next event in
// time, leaving the last event untouched.
func Flood(events []*model.Event) []*model.Event {
	sorted := sortByTimestampStable(events)
	out := make([]*model.Event, len(sorted))
	for i, e := range sorted {
		if i == len(sorted)-1 {
			out[i] = e.Clone()
			continue
		}
		next := sorted[i+1]
		if next.Timestamp.After(e.End()) {
			out[i] = e.WithInterval(e.Interval())
			out[i].Duration = next.Timestamp.Sub(e.Timestamp)
		} else {
			out[i] = e.Clone()
		}
	}
	return out
}
