// Package model defines Sundial's data model: Event, Bucket, Application,
// and Setting, with the derived-field and equality rules the rest of the
// system relies on. Types are plain records with explicit JSON
// serialisation, not map subclasses.
package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/cuemby/sundial/pkg/timeutil"
)

var exeSuffix = regexp.MustCompile(`(?i)\.exe$`)

// Event is a timestamped, duration-bearing record of one observed activity
// window. ID is optional: zero means "not yet assigned by a store".
type Event struct {
	ID               int64
	Timestamp        time.Time
	Duration         time.Duration
	Data             map[string]any
	ServerSyncStatus int

	// Derived fields, recomputed by NewEvent/Normalize from Data; never set
	// directly by callers.
	App             string
	Title           string
	URL             string
	ApplicationName string
}

// NewEvent constructs an Event, normalising its timestamp and duration and
// deriving App/Title/URL/ApplicationName from data. data is not retained;
// a shallow copy is taken.
func NewEvent(timestamp time.Time, duration time.Duration, data map[string]any) (*Event, error) {
	if duration < 0 {
		return nil, fmt.Errorf("event duration %s: %w", duration, sderr.ErrDurationInvalid)
	}
	e := &Event{
		Timestamp: timeutil.Normalize(timestamp),
		Duration:  timeutil.NormalizeDuration(duration),
		Data:      copyData(data),
	}
	e.deriveFields()
	return e, nil
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func (e *Event) deriveFields() {
	e.App = stringField(e.Data, "app")
	e.Title = stringField(e.Data, "title")
	e.URL = stringField(e.Data, "url")
	e.ApplicationName = deriveApplicationName(e.App, e.URL)
}

func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// deriveApplicationName implements §3's derivation: registrable domain of
// url when set, else app with a trailing .exe stripped, falling back to app
// if that strip would leave an empty string.
func deriveApplicationName(app, rawURL string) string {
	if rawURL != "" {
		if dom, err := publicsuffix.Domain(hostOnly(rawURL)); err == nil && dom != "" {
			return dom
		}
	}
	stripped := exeSuffix.ReplaceAllString(app, "")
	if stripped == "" {
		return app
	}
	return stripped
}

// hostOnly extracts a bare host from a URL-ish string so publicsuffix can
// parse it regardless of whether a scheme is present.
func hostOnly(raw string) string {
	s := raw
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.LastIndex(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		if _, err := fmt.Sscanf(s[idx+1:], "%d", new(int)); err == nil {
			s = s[:idx]
		}
	}
	return s
}

// Start returns the event's interval start, equal to Timestamp.
func (e *Event) Start() time.Time { return e.Timestamp }

// End returns the event's exclusive interval end, Timestamp+Duration.
func (e *Event) End() time.Time { return timeutil.End(e.Timestamp, e.Duration) }

// Interval returns the event's half-open interval.
func (e *Event) Interval() timeutil.Interval {
	return timeutil.NewInterval(e.Timestamp, e.Duration)
}

// Equal implements §3's equality rule: (timestamp, duration, data), not id.
func (e *Event) Equal(other *Event) bool {
	if other == nil {
		return false
	}
	if !e.Timestamp.Equal(other.Timestamp) || e.Duration != other.Duration {
		return false
	}
	return dataEqual(e.Data, other.Data)
}

func dataEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	var am, bm map[string]any
	if err := json.Unmarshal(aj, &am); err != nil {
		return false
	}
	if err := json.Unmarshal(bj, &bm); err != nil {
		return false
	}
	aj2, _ := json.Marshal(am)
	bj2, _ := json.Marshal(bm)
	return string(aj2) == string(bj2)
}

// Less orders events by timestamp only, per §3.
func (e *Event) Less(other *Event) bool {
	return e.Timestamp.Before(other.Timestamp)
}

// Clone returns a deep-enough copy of e: Data is copied, derived fields are
// recomputed from it.
func (e *Event) Clone() *Event {
	c := &Event{
		ID:               e.ID,
		Timestamp:        e.Timestamp,
		Duration:         e.Duration,
		Data:             copyData(e.Data),
		ServerSyncStatus: e.ServerSyncStatus,
	}
	c.deriveFields()
	return c
}

// WithInterval returns a clone of e with Timestamp/Duration replaced by the
// given interval, used by range-trim and transform operators that must not
// mutate their inputs.
func (e *Event) WithInterval(iv timeutil.Interval) *Event {
	c := e.Clone()
	c.Timestamp = iv.Start
	c.Duration = iv.Duration()
	return c
}

// eventJSON is the wire/dashboard projection from §6: id, timestamp (ISO-8601
// UTC), duration (seconds, float), data, and the derived fields.
type eventJSON struct {
	ID               int64          `json:"id,omitempty"`
	Timestamp        string         `json:"timestamp"`
	Duration         float64        `json:"duration"`
	Data             map[string]any `json:"data"`
	App              string         `json:"app"`
	Title            string         `json:"title"`
	URL              string         `json:"url"`
	ApplicationName  string         `json:"application_name"`
	ServerSyncStatus int            `json:"server_sync_status"`
}

// MarshalJSON implements the wire projection from §6.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:               e.ID,
		Timestamp:        e.Timestamp.Format(time.RFC3339Nano),
		Duration:         e.Duration.Seconds(),
		Data:             e.Data,
		App:              e.App,
		Title:            e.Title,
		URL:              e.URL,
		ApplicationName:  e.ApplicationName,
		ServerSyncStatus: e.ServerSyncStatus,
	})
}

// UnmarshalJSON parses the wire projection, normalising timestamp/duration
// and re-deriving App/Title/URL/ApplicationName from Data (the wire copies
// of those fields are accepted but not trusted).
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("model: decode event: %w", sderr.ErrDecode)
	}
	ts, err := timeutil.Parse(raw.Timestamp)
	if err != nil {
		return fmt.Errorf("model: decode event timestamp: %w", sderr.ErrDecode)
	}
	if raw.Duration < 0 {
		return fmt.Errorf("model: event duration %f: %w", raw.Duration, sderr.ErrDurationInvalid)
	}
	e.ID = raw.ID
	e.Timestamp = ts
	e.Duration = timeutil.NormalizeDuration(time.Duration(raw.Duration * float64(time.Second)))
	e.Data = raw.Data
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	e.ServerSyncStatus = raw.ServerSyncStatus
	e.deriveFields()
	return nil
}
