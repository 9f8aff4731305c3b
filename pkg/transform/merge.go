package transform

import (
	"encoding/json"
	"time"

	"github.com/cuemby/sundial/pkg/model"
)

// MergeEventsByKeys groups events by the tuple of data[k] for k in keys
// (list-valued values are treated as equal-by-value); the result keeps one
// event per distinct tuple, with the first timestamp seen in the group and
// the sum of durations.
func MergeEventsByKeys(events []*model.Event, keys []string) []*model.Event {
	if len(keys) == 0 {
		return events
	}

	type group struct {
		order int
		event *model.Event
	}
	groups := make(map[string]*group)
	var order []string

	for _, e := range events {
		data := map[string]any{}
		keyParts := make([]any, 0, len(keys))
		for _, k := range keys {
			v, ok := e.Data[k]
			if !ok {
				continue
			}
			data[k] = v
			keyParts = append(keyParts, v)
		}
		keyBytes, _ := json.Marshal(keyParts)
		compositeKey := string(keyBytes)

		g, ok := groups[compositeKey]
		if !ok {
			ne, _ := model.NewEvent(e.Timestamp, e.Duration, data)
			g = &group{order: len(order), event: ne}
			groups[compositeKey] = g
			order = append(order, compositeKey)
			continue
		}
		g.event.Duration += e.Duration
	}

	out := make([]*model.Event, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k].event)
	}
	return out
}

// ChunkEventsByKey walks events in order; consecutive events that share
// data[key] and whose gap is below pulsetime are merged into a single event
// holding the shared key plus a "subevents" list of the originals.
func ChunkEventsByKey(events []*model.Event, key string, pulsetime time.Duration) []*model.Event {
	var chunks []*model.Event
	var last *model.Event

	for _, e := range events {
		val, ok := e.Data[key]
		if !ok {
			break
		}
		if len(chunks) > 0 {
			gap := e.Timestamp.Sub(last.End())
			chunkVal := chunks[len(chunks)-1].Data[key]
			if gap < pulsetime && valuesEqual(chunkVal, val) {
				chunk := chunks[len(chunks)-1]
				chunk.Duration += e.Duration
				sub, _ := chunk.Data["subevents"].([]*model.Event)
				chunk.Data["subevents"] = append(sub, e)
				last = e
				continue
			}
		}
		data := map[string]any{key: val, "subevents": []*model.Event{e}}
		chunk, _ := model.NewEvent(e.Timestamp, e.Duration, data)
		chunks = append(chunks, chunk)
		last = e
	}
	return chunks
}

func valuesEqual(a, b any) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}
