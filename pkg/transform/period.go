package transform

import (
	"sort"

	"github.com/cuemby/sundial/pkg/model"
	"github.com/cuemby/sundial/pkg/timeutil"
)

func sortByTimestampStable(events []*model.Event) []*model.Event {
	out := make([]*model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// FilterPeriodIntersect keeps only the sub-intervals of events that overlap
// an interval in filterevents, e.g. trimming window events to the periods
// the user was not AFK. A two-pointer sweep over both timestamp-sorted
// lists; data comes from events, the interval from the intersection.
func FilterPeriodIntersect(events, filterevents []*model.Event) []*model.Event {
	e1s := sortByTimestampStable(events)
	e2s := sortByTimestampStable(filterevents)

	var out []*model.Event
	i, j := 0, 0
	for i < len(e1s) && j < len(e2s) {
		e1, e2 := e1s[i], e2s[j]
		p1, p2 := e1.Interval(), e2.Interval()

		if ip, ok := timeutil.Intersection(p1, p2); ok {
			out = append(out, e1.WithInterval(ip))
			if !p1.End.After(p2.End) {
				i++
			} else {
				j++
			}
			continue
		}
		if !p1.End.After(p2.Start) {
			i++
		} else if !p2.End.After(p1.Start) {
			j++
		} else {
			// unreachable under sorted, non-intersecting inputs
			i++
			j++
		}
	}
	return out
}

// PeriodUnion returns the smallest set of non-overlapping intervals covering
// every event in a and b; merged events have their data stripped since it
// cannot be kept consistent across a merge.
func PeriodUnion(a, b []*model.Event) []*model.Event {
	combined := make([]*model.Event, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	combined = sortByTimestampStable(combined)

	if len(combined) == 0 {
		return nil
	}

	merged := []*model.Event{combined[0].Clone()}
	for _, e := range combined[1:] {
		last := merged[len(merged)-1]
		ep, lp := e.Interval(), last.Interval()
		if timeutil.Touches(ep, lp) {
			merged[len(merged)-1] = last.WithInterval(timeutil.Union(ep, lp))
		} else {
			merged = append(merged, e.Clone())
		}
	}
	for _, e := range merged {
		e.Data = map[string]any{}
	}
	return merged
}
