package transform

import (
	"reflect"
	"time"

	"github.com/cuemby/sundial/pkg/model"
)

// HeartbeatMerge merges heartbeat into last if they share identical data and
// heartbeat's timestamp falls within pulsetime of last's end. On merge it
// extends last's duration in place and returns last; otherwise it returns
// nil and last is untouched.
func HeartbeatMerge(last, heartbeat *model.Event, pulsetime time.Duration) *model.Event {
	if !reflect.DeepEqual(last.Data, heartbeat.Data) {
		return nil
	}
	pulseEnd := last.End().Add(pulsetime)
	within := !heartbeat.Timestamp.Before(last.Timestamp) && !heartbeat.Timestamp.After(pulseEnd)
	if !within {
		return nil
	}
	newDuration := heartbeat.Timestamp.Sub(last.Timestamp) + heartbeat.Duration
	if last.Duration < 0 {
		return nil
	}
	if newDuration > last.Duration {
		last.Duration = newDuration
	}
	return last
}

// HeartbeatReduce walks events in order, repeatedly attempting to merge each
// into the last retained event via HeartbeatMerge. The result never has
// fewer total covered seconds than the input.
func HeartbeatReduce(events []*model.Event, pulsetime time.Duration) []*model.Event {
	if len(events) == 0 {
		return nil
	}
	reduced := []*model.Event{events[0].Clone()}
	for _, e := range events[1:] {
		if merged := HeartbeatMerge(reduced[len(reduced)-1], e, pulsetime); merged != nil {
			continue
		}
		reduced = append(reduced, e.Clone())
	}
	return reduced
}
