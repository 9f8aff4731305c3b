package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/sundial/pkg/model"
	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/cuemby/sundial/pkg/timeutil"
)

// MemoryStore is the in-memory reference implementation of Store: it is
// both the behavioural oracle transforms and query tests are checked
// against and a fast path for unit tests that don't need encryption.
type MemoryStore struct {
	mu sync.Mutex

	events   map[string][]*model.Event // bucket id -> events, unordered
	metadata map[string]model.Metadata

	settings map[string]model.Setting
	apps     map[int64]*model.Application
	nextApp  int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string][]*model.Event),
		metadata: make(map[string]model.Metadata),
		settings: make(map[string]model.Setting),
		apps:     make(map[int64]*model.Application),
	}
}

func (s *MemoryStore) CreateBucket(b *model.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[b.ID] = b.ToMetadata()
	if _, ok := s.events[b.ID]; !ok {
		s.events[b.ID] = nil
	}
	return nil
}

func (s *MemoryStore) UpdateBucket(id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.metadata[id]
	if !ok {
		return fmt.Errorf("update bucket %q: %w", id, sderr.ErrBucketNotFound)
	}
	if v, ok := fields["name"].(string); ok {
		md.Name = v
	}
	if v, ok := fields["type"].(string); ok {
		md.Type = v
	}
	if v, ok := fields["data"].(map[string]any); ok {
		md.Data = v
	}
	s.metadata[id] = md
	return nil
}

func (s *MemoryStore) DeleteBucket(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metadata[id]; !ok {
		return fmt.Errorf("delete bucket %q: %w", id, sderr.ErrBucketNotFound)
	}
	delete(s.metadata, id)
	delete(s.events, id)
	return nil
}

func (s *MemoryStore) Buckets() (map[string]model.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Metadata, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) GetMetadata(id string) (model.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.metadata[id]
	if !ok {
		return model.Metadata{}, fmt.Errorf("get metadata %q: %w", id, sderr.ErrBucketNotFound)
	}
	return md, nil
}

// InsertOne assigns id = max(existing)+1, or 0 if the bucket is empty, and
// stores a clone of e so later caller mutation cannot corrupt the store.
func (s *MemoryStore) InsertOne(bucketID string, e *model.Event) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metadata[bucketID]; !ok {
		return nil, fmt.Errorf("insert into %q: %w", bucketID, sderr.ErrBucketNotFound)
	}
	stored := e.Clone()
	stored.ID = nextEventID(s.events[bucketID])
	s.events[bucketID] = append(s.events[bucketID], stored)
	return stored.Clone(), nil
}

func nextEventID(events []*model.Event) int64 {
	var max int64 = -1
	for _, e := range events {
		if e.ID > max {
			max = e.ID
		}
	}
	return max + 1
}

func (s *MemoryStore) InsertMany(bucketID string, events []*model.Event) error {
	for _, e := range events {
		if _, err := s.InsertOne(bucketID, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) GetEvent(bucketID string, id int64) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events[bucketID] {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return nil, fmt.Errorf("get event %d in %q: not found", id, bucketID)
}

// GetEvents returns events overlapping [start,end), newest-first, trimmed to
// the window and capped by limit, per §4.3.
func (s *MemoryStore) GetEvents(bucketID string, limit int, start, end *time.Time) ([]*model.Event, error) {
	s.mu.Lock()
	all := make([]*model.Event, len(s.events[bucketID]))
	for i, e := range s.events[bucketID] {
		all[i] = e.Clone()
	}
	s.mu.Unlock()

	filtered := filterAndTrim(all, start, end)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})
	return applyLimit(filtered, limit), nil
}

// filterAndTrim keeps events whose half-open interval overlaps [start,end)
// and trims the ones that only partially overlap, per §4.3's contract.
func filterAndTrim(events []*model.Event, start, end *time.Time) []*model.Event {
	var windowEnd time.Time
	if end != nil {
		windowEnd = timeutil.RoundUpWindowEnd(*end)
	}
	out := make([]*model.Event, 0, len(events))
	for _, e := range events {
		iv := e.Interval()
		if start != nil && !iv.End.After(*start) {
			continue
		}
		if end != nil && iv.Start.After(*end) {
			continue
		}
		if start != nil && iv.Start.Before(*start) {
			iv = timeutil.Interval{Start: *start, End: iv.End}
		}
		if end != nil && iv.End.After(windowEnd) {
			iv = timeutil.Interval{Start: iv.Start, End: windowEnd}
		}
		out = append(out, e.WithInterval(iv))
	}
	return out
}

func applyLimit(events []*model.Event, limit int) []*model.Event {
	switch {
	case limit == 0:
		return []*model.Event{}
	case limit < 0 || limit >= len(events):
		return events
	default:
		return events[:limit]
	}
}

func (s *MemoryStore) GetEventCount(bucketID string, start, end *time.Time) (int, error) {
	events, err := s.GetEvents(bucketID, -1, start, end)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func (s *MemoryStore) DeleteEvent(bucketID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[bucketID]
	for i, e := range events {
		if e.ID == id {
			s.events[bucketID] = append(events[:i], events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete event %d in %q: not found", id, bucketID)
}

func (s *MemoryStore) Replace(bucketID string, id int64, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[bucketID]
	for _, existing := range events {
		if existing.ID == id {
			replacement := e.Clone()
			replacement.ID = id
			*existing = *replacement
			return nil
		}
	}
	return fmt.Errorf("replace event %d in %q: not found", id, bucketID)
}

// ReplaceLast replaces the most recent event sharing e's application_name
// and (if e has a URL) url, or else title, with e. Falls back to the
// greatest-timestamp event in the bucket if nothing matches, since a
// watcher may be correcting a heartbeat whose app/title changed mid-window.
func (s *MemoryStore) ReplaceLast(bucketID string, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[bucketID]
	if len(events) == 0 {
		return fmt.Errorf("replace last in %q: bucket empty", bucketID)
	}
	last := matchForReplaceLast(events, e)
	if last == nil {
		last = events[0]
		for _, existing := range events[1:] {
			if existing.Timestamp.After(last.Timestamp) {
				last = existing
			}
		}
	}
	replacement := e.Clone()
	replacement.ID = last.ID
	*last = *replacement
	return nil
}

// matchForReplaceLast returns the most recent event matching e's
// application_name plus (e.URL if set, else e.Title), or nil if none match.
func matchForReplaceLast(events []*model.Event, e *model.Event) *model.Event {
	var best *model.Event
	for _, existing := range events {
		if existing.ApplicationName != e.ApplicationName {
			continue
		}
		if e.URL != "" {
			if existing.URL != e.URL {
				continue
			}
		} else if existing.Title != e.Title {
			continue
		}
		if best == nil || existing.Timestamp.After(best.Timestamp) {
			best = existing
		}
	}
	return best
}

func (s *MemoryStore) GetMostUsedApps(start, end time.Time) ([]AppUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[string]int64{}
	urls := map[string]string{}
	for _, events := range s.events {
		for _, e := range events {
			if !inDashboardWindow(e, start, end) {
				continue
			}
			totals[e.ApplicationName] += int64(e.Duration.Seconds())
			if e.URL != "" {
				urls[e.ApplicationName] = e.URL
			}
		}
	}
	out := make([]AppUsage, 0, len(totals))
	for app, total := range totals {
		out = append(out, usageFromSeconds(app, total, urls[app]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalDuration > out[j].TotalDuration })
	return out, nil
}

func usageFromSeconds(app string, total int64, url string) AppUsage {
	return AppUsage{
		App:           app,
		TotalHours:    int(total / 3600),
		TotalMinutes:  int((total % 3600) / 60),
		TotalSeconds:  int(total % 60),
		TotalDuration: total,
		URL:           url,
	}
}

// inDashboardWindow implements the dashboard/most-used-apps exclusion rule:
// overlaps the window, duration > 30s, and is not AFK/lock-screen noise.
func inDashboardWindow(e *model.Event, start, end time.Time) bool {
	if e.Duration <= 30*time.Second {
		return false
	}
	if !timeutil.Intersects(e.Interval(), timeutil.Interval{Start: start, End: timeutil.RoundUpWindowEnd(end)}) {
		return false
	}
	return !isAFKNoise(e)
}

func isAFKNoise(e *model.Event) bool {
	app := strings.ToLower(e.App)
	if strings.Contains(app, "afk") || strings.Contains(app, "lockapp") || strings.Contains(app, "loginwindow") {
		return true
	}
	if status, ok := e.Data["status"].(string); ok && strings.Contains(strings.ToLower(status), "not-afk") {
		return true
	}
	return false
}

func (s *MemoryStore) GetDashboardEvents(start, end time.Time) ([]DashboardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DashboardEvent
	for bucketID, events := range s.events {
		for _, e := range events {
			if !inDashboardWindow(e, start, end) {
				continue
			}
			out = append(out, toDashboardEvent(bucketID, e, start, end))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func toDashboardEvent(bucketID string, e *model.Event, start, end time.Time) DashboardEvent {
	return DashboardEvent{
		Start:           start,
		End:             end,
		EventID:         e.ID,
		Duration:        e.Duration.Seconds(),
		Timestamp:       e.Timestamp,
		Data:            e.Data,
		ID:              e.ID,
		BucketID:        bucketID,
		ApplicationName: e.ApplicationName,
		App:             e.App,
		Title:           e.Title,
		URL:             e.URL,
	}
}

func (s *MemoryStore) GetNonSyncEvents() ([]DashboardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DashboardEvent
	for bucketID, events := range s.events {
		for _, e := range events {
			if e.ServerSyncStatus != 0 {
				continue
			}
			out = append(out, toDashboardEvent(bucketID, e, e.Timestamp, e.End()))
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateServerSyncStatus(ids []int64, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, events := range s.events {
		for _, e := range events {
			if _, ok := set[e.ID]; ok {
				e.ServerSyncStatus = status
			}
		}
	}
	return nil
}

func (s *MemoryStore) SaveSetting(setting model.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[setting.Code] = setting
	return nil
}

func (s *MemoryStore) RetrieveSetting(code string) (model.Setting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[code]
	return v, ok, nil
}

func (s *MemoryStore) RetrieveAllSettings() ([]model.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Setting, 0, len(s.settings))
	for _, v := range s.settings {
		out = append(out, v)
	}
	return out, nil
}

func (s *MemoryStore) SaveApplication(a *model.Application) (*model.Application, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	field, value := a.UpsertKey()
	for _, existing := range s.apps {
		existingField, existingValue := existing.UpsertKey()
		if existingField == field && existingValue == value {
			merged := *a
			merged.ID = existing.ID
			*existing = merged
			return existing, nil
		}
	}
	s.nextApp++
	a.ID = s.nextApp
	s.apps[a.ID] = a
	return a, nil
}

func (s *MemoryStore) RetrieveApplications() ([]*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Application, 0, len(s.apps))
	for _, a := range s.apps {
		out = append(out, a)
	}
	return out, nil
}

// IsBlocked implements §4.5's blocking predicate: app name match, or
// normalised host-of-url match, against an is_blocked application.
func (s *MemoryStore) IsBlocked(appName, rawURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := strings.ToLower(hostOf(rawURL))
	for _, a := range s.apps {
		if !a.IsBlocked {
			continue
		}
		if a.Name != "" && a.Name == appName {
			return true, nil
		}
		if a.URL != "" && host != "" && strings.ToLower(hostOf(a.URL)) == host {
			return true, nil
		}
	}
	return false, nil
}

func hostOf(raw string) string {
	s := raw
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	return s
}

func (s *MemoryStore) Close() error { return nil }
