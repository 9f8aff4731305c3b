// Package timeutil implements the timestamp and interval arithmetic shared by
// the event model, storage backends, and transforms: UTC normalisation,
// millisecond truncation, and half-open interval operations.
package timeutil

import (
	"fmt"
	"time"
)

// Millisecond is the resolution every Instant and Duration is truncated to.
const Millisecond = time.Millisecond

// Parse normalises an RFC3339 timestamp string to UTC with millisecond
// truncation. A value with no UTC offset is accepted and treated as UTC.
func Parse(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("timeutil: parse %q: %w", value, err)
		}
	}
	return Normalize(t), nil
}

// Normalize converts t to UTC and truncates it down to millisecond
// resolution (floor, not round).
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Millisecond)
}

// NormalizeDuration truncates d down to millisecond resolution. Negative
// durations are the caller's responsibility to reject; this function only
// normalises resolution.
func NormalizeDuration(d time.Duration) time.Duration {
	if d < 0 {
		return d
	}
	return d.Truncate(Millisecond)
}

// End returns the exclusive end of the half-open interval [start, start+dur).
func End(start time.Time, dur time.Duration) time.Time {
	return start.Add(dur)
}

// RoundUpWindowEnd implements the range-query "round up" rule: an end
// timestamp is pushed forward to the next millisecond boundary so that
// events ending exactly at the window boundary are included.
func RoundUpWindowEnd(end time.Time) time.Time {
	rem := end.Sub(end.Truncate(Millisecond))
	if rem == 0 {
		return end.Add(Millisecond)
	}
	return end.Truncate(Millisecond).Add(Millisecond)
}

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an Interval from a start instant and a duration.
func NewInterval(start time.Time, dur time.Duration) Interval {
	return Interval{Start: start, End: start.Add(dur)}
}

// Duration returns End-Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Intersects reports whether a and b overlap: a.Start < b.End && b.Start < a.End.
func Intersects(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Gap returns the non-overlapping gap duration between a and b. It is zero or
// negative when the intervals touch or overlap.
func Gap(a, b Interval) time.Duration {
	if a.Start.After(b.Start) {
		a, b = b, a
	}
	return b.Start.Sub(a.End)
}

// Intersection returns the overlapping sub-interval of a and b, and whether
// one exists.
func Intersection(a, b Interval) (Interval, bool) {
	if !Intersects(a, b) {
		return Interval{}, false
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return Interval{Start: start, End: end}, true
}

// Union returns the smallest interval covering both a and b. It does not
// report whether they touch or overlap: a disjoint pair still returns a
// spanning interval, so callers that need to know disjointness check
// Intersects/Touches/Gap first.
func Union(a, b Interval) Interval {
	start := a.Start
	if b.Start.Before(start) {
		start = b.Start
	}
	end := a.End
	if b.End.After(end) {
		end = b.End
	}
	return Interval{Start: start, End: end}
}

// Touches reports whether a and b overlap or share a boundary point, i.e.
// whether they should be merged by period_union semantics.
func Touches(a, b Interval) bool {
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}
