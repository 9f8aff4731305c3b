// Package transform implements the timeline algebra operators queries are
// built from: filters, period intersect/union, heartbeat reduction,
// categorisation, and the smaller string/URL/sort helpers. Every function
// except HeartbeatMerge is pure: none mutate the event lists or events passed
// in. HeartbeatMerge extends its last argument's duration in place.
package transform

import (
	"fmt"
	"regexp"

	"github.com/cuemby/sundial/pkg/model"
)

// FilterKeyvals keeps (or, when exclude is true, drops) events whose
// data[key] is a string found in vals.
func FilterKeyvals(events []*model.Event, key string, vals []string, exclude bool) []*model.Event {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	matches := func(e *model.Event) bool {
		v, ok := e.Data[key]
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, in := set[s]
		return in
	}
	out := make([]*model.Event, 0, len(events))
	for _, e := range events {
		if matches(e) != exclude {
			out = append(out, e)
		}
	}
	return out
}

// FilterKeyvalsRegex keeps events whose data[key] string value matches
// (searches, not full-matches) regex.
func FilterKeyvalsRegex(events []*model.Event, key, regex string) ([]*model.Event, error) {
	r, err := regexp.Compile(regex)
	if err != nil {
		return nil, fmt.Errorf("transform: compile regex %q: %w", regex, err)
	}
	out := make([]*model.Event, 0, len(events))
	for _, e := range events {
		v, ok := e.Data[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if r.MatchString(s) {
			out = append(out, e)
		}
	}
	return out, nil
}
