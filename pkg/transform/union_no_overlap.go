package transform

import (
	"time"

	"github.com/cuemby/sundial/pkg/model"
	"github.com/cuemby/sundial/pkg/timeutil"
)

// splitEvent cuts e into two at dt if dt falls strictly inside e's interval,
// returning (prefix, suffix). If dt is not strictly inside, it returns
// (e, nil) unchanged.
func splitEvent(e *model.Event, dt time.Time) (*model.Event, *model.Event) {
	if e.Timestamp.Before(dt) && dt.Before(e.End()) {
		prefix := e.WithInterval(timeutil.Interval{Start: e.Timestamp, End: dt})
		suffix := e.WithInterval(timeutil.Interval{Start: dt, End: e.End()})
		return prefix, suffix
	}
	return e, nil
}

// UnionNoOverlap merges events1 and events2, giving events1 precedence: any
// portion of an events2 interval that overlaps an events1 interval is
// dropped (the events2 event is split around the overlap and only its
// non-overlapping remainder survives).
func UnionNoOverlap(events1, events2 []*model.Event) []*model.Event {
	e1 := cloneAll(sortByTimestampStable(events1))
	e2 := cloneAll(sortByTimestampStable(events2))

	var out []*model.Event
	i, j := 0, 0
	for i < len(e1) && j < len(e2) {
		a, b := e1[i], e2[j]
		ap, bp := a.Interval(), b.Interval()

		if timeutil.Intersects(ap, bp) {
			if !a.Timestamp.After(b.Timestamp) {
				out = append(out, a)
				i++
				_, next := splitEvent(b, a.End())
				if next != nil {
					e2[j] = next
				} else {
					j++
				}
			} else {
				head, tail := splitEvent(b, a.Timestamp)
				out = append(out, head)
				j++
				if tail != nil {
					e2 = append(e2[:j], append([]*model.Event{tail}, e2[j:]...)...)
				}
			}
			continue
		}

		if !a.Timestamp.After(b.Timestamp) {
			out = append(out, a)
			i++
		} else {
			out = append(out, b)
			j++
		}
	}
	out = append(out, e1[i:]...)
	out = append(out, e2[j:]...)
	return out
}

func cloneAll(events []*model.Event) []*model.Event {
	out := make([]*model.Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}
