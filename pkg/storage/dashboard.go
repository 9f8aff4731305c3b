package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/sundial/pkg/metrics"
	"github.com/cuemby/sundial/pkg/model"
	"github.com/cuemby/sundial/pkg/timeutil"
)

// eventColumnsQualified is eventColumns with each column prefixed by
// "event." for JOIN queries that also select bucket.id.
const eventColumnsQualified = `event.id, event.timestamp, event.duration, event.datastr, event.app, event.title, event.url, event.application_name, event.server_sync_status`

// eventRow pairs a decoded event with the bucket id it belongs to, the
// shape every cross-bucket aggregate query needs.
type eventRow struct {
	bucketID string
	event    *model.Event
}

// scanEventRowsInWindow coarsely prunes to [start-maxEventSpan, end] in SQL
// across all buckets; callers apply the exact windowing/exclusion rule
// themselves, reusing the same inDashboardWindow/isAFKNoise helpers
// MemoryStore uses so both backends agree on what the dashboard shows.
func (s *EncryptedStore) scanEventRowsInWindow(start, end time.Time) ([]eventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := start.Add(-maxEventSpan).Format(time.RFC3339Nano)
	upper := timeutil.RoundUpWindowEnd(end).Format(time.RFC3339Nano)
	rows, err := s.db.Query(
		`SELECT bucket.id, `+eventColumnsQualified+`
		 FROM event JOIN bucket ON bucket.key = event.bucket_fk
		 WHERE event.timestamp >= ? AND event.timestamp <= ?`,
		lower, upper,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: scan events in window: %w", err)
	}
	defer rows.Close()
	var out []eventRow
	for rows.Next() {
		var bucketID string
		e, err := scanEventWithBucket(rows, &bucketID)
		if err != nil {
			return nil, fmt.Errorf("storage: scan events in window: %w", err)
		}
		out = append(out, eventRow{bucketID: bucketID, event: e})
	}
	return out, rows.Err()
}

func (s *EncryptedStore) GetMostUsedApps(start, end time.Time) ([]AppUsage, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.DashboardQueryDuration, "most_used_apps")

	rows, err := s.scanEventRowsInWindow(start, end)
	if err != nil {
		return nil, err
	}
	totals := map[string]int64{}
	urls := map[string]string{}
	for _, r := range rows {
		if !inDashboardWindow(r.event, start, end) {
			continue
		}
		totals[r.event.ApplicationName] += int64(r.event.Duration.Seconds())
		if r.event.URL != "" {
			urls[r.event.ApplicationName] = r.event.URL
		}
	}
	out := make([]AppUsage, 0, len(totals))
	for app, total := range totals {
		out = append(out, usageFromSeconds(app, total, urls[app]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalDuration > out[j].TotalDuration })
	return out, nil
}

func (s *EncryptedStore) GetDashboardEvents(start, end time.Time) ([]DashboardEvent, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.DashboardQueryDuration, "dashboard_events")

	rows, err := s.scanEventRowsInWindow(start, end)
	if err != nil {
		return nil, err
	}
	var out []DashboardEvent
	for _, r := range rows {
		if !inDashboardWindow(r.event, start, end) {
			continue
		}
		out = append(out, toDashboardEvent(r.bucketID, r.event, start, end))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *EncryptedStore) GetNonSyncEvents() ([]DashboardEvent, error) {
	s.mu.Lock()
	rows, err := s.db.Query(
		`SELECT bucket.id, ` + eventColumnsQualified + `
		 FROM event JOIN bucket ON bucket.key = event.bucket_fk
		 WHERE event.server_sync_status = 0`,
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("storage: get non-sync events: %w", err)
	}
	var out []DashboardEvent
	for rows.Next() {
		var bucketID string
		e, err := scanEventWithBucket(rows, &bucketID)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, fmt.Errorf("storage: get non-sync events: %w", err)
		}
		out = append(out, toDashboardEvent(bucketID, e, e.Timestamp, e.End()))
	}
	rerr := rows.Err()
	rows.Close()
	s.mu.Unlock()
	if rerr != nil {
		return nil, fmt.Errorf("storage: get non-sync events: %w", rerr)
	}
	return out, nil
}

func (s *EncryptedStore) UpdateServerSyncStatus(ids []int64, status int) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, status)
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE event SET server_sync_status = ? WHERE id IN (%s)`, placeholders)
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("storage: update server sync status: %w", err)
	}
	s.markDirty()
	return s.flush()
}
