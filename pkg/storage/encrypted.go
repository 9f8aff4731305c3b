package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/cuemby/sundial/pkg/autostart"
	"github.com/cuemby/sundial/pkg/coordinator"
	"github.com/cuemby/sundial/pkg/log"
	"github.com/cuemby/sundial/pkg/metrics"
	"github.com/cuemby/sundial/pkg/model"
	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/cuemby/sundial/pkg/timeutil"
)

// CoalesceWindow is the heartbeat-coalescing lookback window from §4.5.
const CoalesceWindow = 70 * time.Second

// maxEventSpan bounds how far before a window's start an overlapping event's
// own timestamp can be: events are heartbeats and short watcher windows, not
// multi-day spans, so this is a safe coarse prune for the SQL half of a
// range scan. The exact overlap/trim clause is still applied in Go by
// filterAndTrim, same as MemoryStore, so a stored event that did somehow
// exceed this span would only be pruned from query results, never corrupted.
const maxEventSpan = 24 * time.Hour

// EncryptedStore is the persistent, single-writer Store backed by a SQLite
// file kept encrypted at rest. The live file lives in a private temp
// directory for the process lifetime; the on-disk artifact at DataDir is an
// AES-256-GCM-encrypted image of it, refreshed on every mutating call and on
// Close (see crypto.go).
type EncryptedStore struct {
	mu sync.Mutex

	db       *sql.DB
	tempDir  string
	tempPath string
	encPath  string
	key      []byte
	dirty    bool

	bucketKeys  map[string]int64 // bucket id -> internal key
	bucketTypes map[int64]string // internal key -> bucket type, for metric labels
}

// Open implements steps 3-6 of §4.5's open protocol. Steps 1-2 (credential
// fetch/decrypt) are the caller's responsibility, normally pkg/credential's
// Gate; Open receives the already-decrypted passphrase. agent may be nil,
// in which case steps 5's launch-setting re-emission and step 6's
// launch-at-login policy application are both skipped (e.g. in tests, or on
// a platform with no autostart.Agent implementation).
func Open(dataDir, email, passphrase string, coord coordinator.ModuleCoordinator, agent autostart.Agent) (*EncryptedStore, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StoreOpenDuration)

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("storage: ensure data dir: %w", err)
	}
	encPath := filepath.Join(dataDir, fmt.Sprintf("sundial-sqlite-%s.v%d.db", email, SchemaVersion))

	key, err := deriveKey(passphrase, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sderr.ErrFatal, err)
	}

	tempDir, err := os.MkdirTemp("", "sundial-store-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", sderr.ErrFatal, err)
	}
	if err := os.Chmod(tempDir, 0700); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("%w: secure temp dir: %v", sderr.ErrFatal, err)
	}
	tempPath := filepath.Join(tempDir, "store.db")

	if err := decryptFile(encPath, tempPath, key); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("%w: %v", sderr.ErrFatal, err)
	}

	db, err := sql.Open("sqlite", tempPath)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("%w: open sqlite: %v", sderr.ErrFatal, err)
	}
	db.SetMaxOpenConns(1) // single-writer model per §5

	if err := createTables(db); err != nil {
		db.Close()
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("%w: %v", sderr.ErrFatal, err)
	}
	changed, err := migrate(db)
	if err != nil {
		db.Close()
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("%w: %v", sderr.ErrFatal, err)
	}

	s := &EncryptedStore{
		db:          db,
		tempDir:     tempDir,
		tempPath:    tempPath,
		encPath:     encPath,
		key:         key,
		bucketKeys:  map[string]int64{},
		bucketTypes: map[int64]string{},
	}
	if err := s.loadBucketKeys(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", sderr.ErrFatal, err)
	}
	if err := s.seedDefaults(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", sderr.ErrFatal, err)
	}
	if agent != nil {
		if err := s.reemitLaunchSetting(agent); err != nil {
			log.Errorf("re-emit launch setting from autostart status", err)
		}
	}

	if changed && coord != nil {
		log.WithComponent("storage").Info().Msg("schema or identity changed, cycling modules")
		if err := coordinator.StopAll(coord); err != nil {
			log.Errorf("stop all modules", err)
		}
		if err := coordinator.StartAll(coord); err != nil {
			log.Errorf("start all modules", err)
		}
		if agent != nil {
			if err := s.applyLaunchAtLoginPolicy(agent); err != nil {
				log.Errorf("apply launch-at-login policy", err)
			}
		}
	}

	metrics.StoreOpen.Set(1)
	return s, nil
}

// reemitLaunchSetting overwrites the "launch" setting with the autostart
// agent's actual current status, per step 5 of the open protocol: the
// stored setting should reflect reality, not whatever the last write left
// it at (autostart can be toggled outside Sundial, e.g. by the OS).
func (s *EncryptedStore) reemitLaunchSetting(agent autostart.Agent) error {
	enabled, err := agent.IsEnabled()
	if err != nil {
		return err
	}
	return s.SaveSetting(model.Setting{Code: model.SettingLaunch, Value: enabled})
}

// applyLaunchAtLoginPolicy enforces the "launch" setting against the
// autostart agent, per step 6 of the open protocol: on schema/identity
// change, the stored policy is pushed out to the OS rather than merely read
// back.
func (s *EncryptedStore) applyLaunchAtLoginPolicy(agent autostart.Agent) error {
	setting, ok, err := s.RetrieveSetting(model.SettingLaunch)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	enabled, _ := setting.Value.(bool)
	if enabled {
		return agent.Enable()
	}
	return agent.Disable()
}

func (s *EncryptedStore) loadBucketKeys() error {
	rows, err := s.db.Query(`SELECT key, id, type FROM bucket`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key int64
		var id, typ string
		if err := rows.Scan(&key, &id, &typ); err != nil {
			return err
		}
		s.bucketKeys[id] = key
		s.bucketTypes[key] = typ
	}
	return rows.Err()
}

// bucketTypeLocked returns the bucket type for bkey, or "unknown" if it
// isn't cached (should not happen for a key obtained via bucketKey).
func (s *EncryptedStore) bucketTypeLocked(bkey int64) string {
	if typ, ok := s.bucketTypes[bkey]; ok {
		return typ
	}
	return "unknown"
}

// seedDefaults seeds the default settings and weekday schedule if absent,
// matching step 5 of the open protocol.
func (s *EncryptedStore) seedDefaults() error {
	defaults := map[string]any{
		model.SettingTimeZone:   "+00:00",
		model.SettingTimeFormat: 24,
		model.SettingSchedule:   false,
		model.SettingLaunch:     false,
		model.SettingIdleTime:   true,
	}
	for code, value := range defaults {
		if _, ok, err := s.RetrieveSetting(code); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := s.SaveSetting(model.Setting{Code: code, Value: value}); err != nil {
			return err
		}
	}
	if _, ok, err := s.RetrieveSetting(model.SettingWeekdaysSchedule); err != nil {
		return err
	} else if !ok {
		if err := s.SaveSetting(model.Setting{Code: model.SettingWeekdaysSchedule, Value: model.DefaultWeekdaysSchedule()}); err != nil {
			return err
		}
	}
	return nil
}

// flush re-encrypts the live temp file over the on-disk artifact if dirty.
// Called by every mutating method on success, and by Close.
func (s *EncryptedStore) flush() error {
	if !s.dirty {
		return nil
	}
	if err := encryptFile(s.tempPath, s.encPath, s.key); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *EncryptedStore) markDirty() { s.dirty = true }

// Close flushes any pending writes and releases the temp working copy.
func (s *EncryptedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flushErr := s.flush()
	closeErr := s.db.Close()
	os.RemoveAll(s.tempDir)
	metrics.StoreOpen.Set(0)
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *EncryptedStore) bucketKey(id string) (int64, bool) {
	key, ok := s.bucketKeys[id]
	return key, ok
}

func (s *EncryptedStore) CreateBucket(b *model.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dataJSON, err := json.Marshal(b.Data)
	if err != nil {
		return fmt.Errorf("storage: marshal bucket data: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO bucket (id, created, name, type, client, hostname, datastr) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Created.Format(time.RFC3339Nano), b.Name, b.Type, b.Client, b.Hostname, string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("storage: create bucket: %w", err)
	}
	key, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage: create bucket: %w", err)
	}
	s.bucketKeys[b.ID] = key
	s.bucketTypes[key] = b.Type
	s.markDirty()
	return s.flush()
}

func (s *EncryptedStore) UpdateBucket(id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bkey, ok := s.bucketKey(id)
	if !ok {
		return fmt.Errorf("update bucket %q: %w", id, sderr.ErrBucketNotFound)
	}
	if name, ok := fields["name"].(string); ok {
		if _, err := s.db.Exec(`UPDATE bucket SET name = ? WHERE id = ?`, name, id); err != nil {
			return fmt.Errorf("storage: update bucket name: %w", err)
		}
	}
	if typ, ok := fields["type"].(string); ok {
		if _, err := s.db.Exec(`UPDATE bucket SET type = ? WHERE id = ?`, typ, id); err != nil {
			return fmt.Errorf("storage: update bucket type: %w", err)
		}
		s.bucketTypes[bkey] = typ
	}
	if data, ok := fields["data"].(map[string]any); ok {
		dataJSON, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("storage: marshal bucket data: %w", err)
		}
		if _, err := s.db.Exec(`UPDATE bucket SET datastr = ? WHERE id = ?`, string(dataJSON), id); err != nil {
			return fmt.Errorf("storage: update bucket data: %w", err)
		}
	}
	s.markDirty()
	return s.flush()
}

func (s *EncryptedStore) DeleteBucket(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.bucketKey(id)
	if !ok {
		return fmt.Errorf("delete bucket %q: %w", id, sderr.ErrBucketNotFound)
	}
	if _, err := s.db.Exec(`DELETE FROM event WHERE bucket_fk = ?`, key); err != nil {
		return fmt.Errorf("storage: cascade delete events: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM bucket WHERE id = ?`, id); err != nil {
		return fmt.Errorf("storage: delete bucket: %w", err)
	}
	delete(s.bucketKeys, id)
	delete(s.bucketTypes, key)
	s.markDirty()
	return s.flush()
}

func (s *EncryptedStore) Buckets() (map[string]model.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT id, created, name, type, client, hostname, datastr FROM bucket`)
	if err != nil {
		return nil, fmt.Errorf("storage: list buckets: %w", err)
	}
	defer rows.Close()
	out := map[string]model.Metadata{}
	for rows.Next() {
		md, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out[md.ID] = md
	}
	return out, rows.Err()
}

func (s *EncryptedStore) GetMetadata(id string) (model.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT id, created, name, type, client, hostname, datastr FROM bucket WHERE id = ?`, id)
	md, err := scanMetadata(row)
	if err == sql.ErrNoRows {
		return model.Metadata{}, fmt.Errorf("get metadata %q: %w", id, sderr.ErrBucketNotFound)
	}
	if err != nil {
		return model.Metadata{}, fmt.Errorf("storage: get metadata: %w", err)
	}
	return md, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (model.Metadata, error) {
	var md model.Metadata
	var dataStr string
	var name sql.NullString
	if err := row.Scan(&md.ID, &md.Created, &name, &md.Type, &md.Client, &md.Hostname, &dataStr); err != nil {
		return model.Metadata{}, err
	}
	md.Name = name.String
	if err := json.Unmarshal([]byte(dataStr), &md.Data); err != nil {
		log.Errorf(fmt.Sprintf("decode bucket %q data", md.ID), err)
		md.Data = map[string]any{}
	}
	return md, nil
}

const eventColumns = `id, timestamp, duration, datastr, app, title, url, application_name, server_sync_status`

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		id         int64
		tsStr      string
		durSeconds float64
		dataStr    string
		app        sql.NullString
		title      sql.NullString
		url        sql.NullString
		appName    sql.NullString
		syncStatus int
	)
	if err := row.Scan(&id, &tsStr, &durSeconds, &dataStr, &app, &title, &url, &appName, &syncStatus); err != nil {
		return nil, err
	}
	return buildEvent(id, tsStr, durSeconds, dataStr, syncStatus)
}

func scanEventWithBucket(rows *sql.Rows, bucketID *string) (*model.Event, error) {
	var (
		id         int64
		tsStr      string
		durSeconds float64
		dataStr    string
		app        sql.NullString
		title      sql.NullString
		url        sql.NullString
		appName    sql.NullString
		syncStatus int
	)
	if err := rows.Scan(bucketID, &id, &tsStr, &durSeconds, &dataStr, &app, &title, &url, &appName, &syncStatus); err != nil {
		return nil, err
	}
	return buildEvent(id, tsStr, durSeconds, dataStr, syncStatus)
}

// buildEvent reconstructs an Event from its stored columns. app/title/url/
// application_name are kept as separate columns for indexing and the
// coalescing lookup, but datastr is authoritative: derived fields are
// recomputed from it via model.NewEvent, not trusted from those columns.
func buildEvent(id int64, tsStr string, durSeconds float64, dataStr string, syncStatus int) (*model.Event, error) {
	ts, err := timeutil.Parse(tsStr)
	if err != nil {
		return nil, fmt.Errorf("storage: parse event timestamp: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
		log.Errorf(fmt.Sprintf("decode event %d data", id), err)
		data = map[string]any{}
	}
	e, err := model.NewEvent(ts, timeutil.NormalizeDuration(time.Duration(durSeconds*float64(time.Second))), data)
	if err != nil {
		return nil, err
	}
	e.ID = id
	e.ServerSyncStatus = syncStatus
	return e, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting the insert path
// run its coalescing logic against either the store's live connection
// (InsertOne) or a batch transaction (InsertMany).
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InsertOne implements §4.5's heartbeat-coalescing fast path. An event
// missing app or title is AFK/lock-screen noise and is dropped: it is
// stored nowhere and InsertOne returns (nil, nil) rather than an error.
func (s *EncryptedStore) InsertOne(bucketID string, e *model.Event) (*model.Event, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.InsertDuration)

	s.mu.Lock()
	defer s.mu.Unlock()
	bkey, ok := s.bucketKey(bucketID)
	if !ok {
		return nil, fmt.Errorf("insert into %q: %w", bucketID, sderr.ErrBucketNotFound)
	}
	stored, err := s.insertOneLocked(s.db, bkey, e)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	s.markDirty()
	if err := s.flush(); err != nil {
		return nil, err
	}
	return stored, nil
}

// insertOneLocked runs §4.5's heartbeat-coalescing fast path against db,
// which may be s.db (InsertOne) or a batch transaction (InsertMany's
// per-chunk sql.Tx). The caller holds s.mu and owns markDirty/flush.
func (s *EncryptedStore) insertOneLocked(db querier, bkey int64, e *model.Event) (*model.Event, error) {
	bucketType := s.bucketTypeLocked(bkey)
	if e.App == "" || e.Title == "" {
		metrics.EventsDroppedTotal.WithLabelValues(bucketType).Inc()
		return nil, nil
	}

	existing, err := s.findCoalesceCandidateLocked(db, bkey, e)
	if err != nil {
		return nil, err
	}

	var stored *model.Event
	if existing != nil {
		merged := existing.Duration + e.Duration
		if _, err := db.Exec(
			`UPDATE event SET duration = ?, server_sync_status = 0 WHERE id = ?`,
			merged.Seconds(), existing.ID,
		); err != nil {
			return nil, fmt.Errorf("storage: coalesce event: %w", err)
		}
		existing.Duration = merged
		existing.ServerSyncStatus = 0
		stored = existing
		metrics.HeartbeatCoalescedTotal.WithLabelValues(bucketType).Inc()
	} else {
		stored, err = s.insertEventRowLocked(db, bkey, e)
		if err != nil {
			return nil, err
		}
		metrics.EventsInsertedTotal.WithLabelValues(bucketType).Inc()
	}

	if err := s.upsertApplicationFromEventLocked(db, e); err != nil {
		log.Errorf("upsert application from event", err)
	}

	return stored, nil
}

// findCoalesceCandidateLocked looks up the most recent event in the bucket
// sharing application_name and title whose timestamp falls within the last
// CoalesceWindow of e's timestamp.
func (s *EncryptedStore) findCoalesceCandidateLocked(db querier, bkey int64, e *model.Event) (*model.Event, error) {
	windowStart := e.Timestamp.Add(-CoalesceWindow)
	row := db.QueryRow(
		`SELECT `+eventColumns+` FROM event
		 WHERE bucket_fk = ? AND application_name = ? AND title = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp DESC LIMIT 1`,
		bkey, e.ApplicationName, e.Title, windowStart.Format(time.RFC3339Nano), e.Timestamp.Format(time.RFC3339Nano),
	)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find coalesce candidate: %w", err)
	}
	return ev, nil
}

func (s *EncryptedStore) insertEventRowLocked(db querier, bkey int64, e *model.Event) (*model.Event, error) {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal event data: %w", err)
	}
	res, err := db.Exec(
		`INSERT INTO event (bucket_fk, timestamp, duration, datastr, app, title, url, application_name, server_sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bkey, e.Timestamp.Format(time.RFC3339Nano), e.Duration.Seconds(), string(dataJSON),
		e.App, e.Title, e.URL, e.ApplicationName, e.ServerSyncStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("storage: insert event: %w", err)
	}
	stored := e.Clone()
	stored.ID = id
	return stored, nil
}

// insertManyChunkSize is the §4.3/§4.5 "chunks of 100 events" unit: each
// chunk commits as one SQL transaction, and the encrypted file is flushed
// once per chunk rather than once per event.
const insertManyChunkSize = 100

// InsertMany chunks events into batches of up to insertManyChunkSize,
// committing each batch as a single sql.Tx so a chunk is atomic, then
// flushing the encrypted file once per chunk — not all-or-nothing across
// chunks, per §4.3/§4.5.
func (s *EncryptedStore) InsertMany(bucketID string, events []*model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bkey, ok := s.bucketKey(bucketID)
	if !ok {
		return fmt.Errorf("insert into %q: %w", bucketID, sderr.ErrBucketNotFound)
	}

	for start := 0; start < len(events); start += insertManyChunkSize {
		end := start + insertManyChunkSize
		if end > len(events) {
			end = len(events)
		}
		if err := s.insertManyChunkLocked(bkey, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// insertManyChunkLocked commits one chunk's worth of events inside a single
// transaction, then flushes the encrypted file once for the whole chunk.
func (s *EncryptedStore) insertManyChunkLocked(bkey int64, chunk []*model.Event) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.InsertDuration)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin insert_many chunk: %w", err)
	}
	for _, e := range chunk {
		if _, err := s.insertOneLocked(tx, bkey, e); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit insert_many chunk: %w", err)
	}

	s.markDirty()
	return s.flush()
}

func (s *EncryptedStore) GetEvent(bucketID string, id int64) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bkey, ok := s.bucketKey(bucketID)
	if !ok {
		return nil, fmt.Errorf("get event %d in %q: %w", id, bucketID, sderr.ErrBucketNotFound)
	}
	row := s.db.QueryRow(`SELECT `+eventColumns+` FROM event WHERE bucket_fk = ? AND id = ?`, bkey, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get event %d in %q: not found", id, bucketID)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get event: %w", err)
	}
	return e, nil
}

// GetEvents prunes to a coarse [start-maxEventSpan, end] window in SQL, then
// applies the exact duration-aware overlap/trim clause in Go by reusing
// filterAndTrim, the same function MemoryStore uses, so both backends agree.
func (s *EncryptedStore) GetEvents(bucketID string, limit int, start, end *time.Time) ([]*model.Event, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RangeScanDuration)

	s.mu.Lock()
	bkey, ok := s.bucketKey(bucketID)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("get events in %q: %w", bucketID, sderr.ErrBucketNotFound)
	}
	query := `SELECT ` + eventColumns + ` FROM event WHERE bucket_fk = ?`
	args := []any{bkey}
	if start != nil {
		query += ` AND timestamp >= ?`
		args = append(args, start.Add(-maxEventSpan).Format(time.RFC3339Nano))
	}
	if end != nil {
		query += ` AND timestamp <= ?`
		args = append(args, timeutil.RoundUpWindowEnd(*end).Format(time.RFC3339Nano))
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("storage: get events: %w", err)
	}
	all, scanErr := scanAllEvents(rows)
	rows.Close()
	s.mu.Unlock()
	if scanErr != nil {
		return nil, fmt.Errorf("storage: get events: %w", scanErr)
	}

	filtered := filterAndTrim(all, start, end)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})
	result := applyLimit(filtered, limit)
	metrics.RangeScanEventsReturned.Observe(float64(len(result)))
	return result, nil
}

func scanAllEvents(rows *sql.Rows) ([]*model.Event, error) {
	var out []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *EncryptedStore) GetEventCount(bucketID string, start, end *time.Time) (int, error) {
	events, err := s.GetEvents(bucketID, -1, start, end)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func (s *EncryptedStore) DeleteEvent(bucketID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bkey, ok := s.bucketKey(bucketID)
	if !ok {
		return fmt.Errorf("delete event %d in %q: %w", id, bucketID, sderr.ErrBucketNotFound)
	}
	res, err := s.db.Exec(`DELETE FROM event WHERE bucket_fk = ? AND id = ?`, bkey, id)
	if err != nil {
		return fmt.Errorf("storage: delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete event %d in %q: not found", id, bucketID)
	}
	s.markDirty()
	return s.flush()
}

func (s *EncryptedStore) updateEventRowLocked(bkey, id int64, e *model.Event) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("storage: marshal event data: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE event SET timestamp=?, duration=?, datastr=?, app=?, title=?, url=?, application_name=?, server_sync_status=?
		 WHERE bucket_fk=? AND id=?`,
		e.Timestamp.Format(time.RFC3339Nano), e.Duration.Seconds(), string(dataJSON),
		e.App, e.Title, e.URL, e.ApplicationName, e.ServerSyncStatus, bkey, id,
	)
	if err != nil {
		return fmt.Errorf("storage: replace event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: replace event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("replace event %d: not found", id)
	}
	return nil
}

func (s *EncryptedStore) Replace(bucketID string, id int64, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bkey, ok := s.bucketKey(bucketID)
	if !ok {
		return fmt.Errorf("replace event %d in %q: %w", id, bucketID, sderr.ErrBucketNotFound)
	}
	if err := s.updateEventRowLocked(bkey, id, e); err != nil {
		return err
	}
	s.markDirty()
	return s.flush()
}

// ReplaceLast replaces the most recent event sharing e's application_name
// and (if e has a URL) url, or else title, falling back to the event with
// the greatest timestamp in the bucket; this matches MemoryStore's semantics.
func (s *EncryptedStore) ReplaceLast(bucketID string, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bkey, ok := s.bucketKey(bucketID)
	if !ok {
		return fmt.Errorf("replace last in %q: %w", bucketID, sderr.ErrBucketNotFound)
	}
	id, err := s.findReplaceLastTargetLocked(bkey, e)
	if err == sql.ErrNoRows {
		return fmt.Errorf("replace last in %q: bucket empty", bucketID)
	}
	if err != nil {
		return fmt.Errorf("storage: replace last: %w", err)
	}
	if err := s.updateEventRowLocked(bkey, id, e); err != nil {
		return err
	}
	s.markDirty()
	return s.flush()
}

// findReplaceLastTargetLocked returns the id of the most recent event
// sharing e's application_name and (if e has a url) url, or else title.
// Falls back to the greatest-timestamp event in the bucket if nothing
// matches, since a watcher may be correcting a heartbeat whose app/title
// changed mid-window.
func (s *EncryptedStore) findReplaceLastTargetLocked(bkey int64, e *model.Event) (int64, error) {
	var id int64
	var err error
	if e.URL != "" {
		err = s.db.QueryRow(
			`SELECT id FROM event WHERE bucket_fk = ? AND application_name = ? AND url = ? ORDER BY timestamp DESC LIMIT 1`,
			bkey, e.ApplicationName, e.URL,
		).Scan(&id)
	} else {
		err = s.db.QueryRow(
			`SELECT id FROM event WHERE bucket_fk = ? AND application_name = ? AND title = ? ORDER BY timestamp DESC LIMIT 1`,
			bkey, e.ApplicationName, e.Title,
		).Scan(&id)
	}
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	return id, s.db.QueryRow(`SELECT id FROM event WHERE bucket_fk = ? ORDER BY timestamp DESC LIMIT 1`, bkey).Scan(&id)
}

// upsertApplicationFromEventLocked upserts an application row keyed off the
// event's raw (app, url) pair, per §4.5's insert_one contract.
func (s *EncryptedStore) upsertApplicationFromEventLocked(db querier, e *model.Event) error {
	a := &model.Application{}
	switch {
	case e.URL != "":
		a.Type = model.ApplicationTypeWeb
		a.URL = e.URL
	case e.App != "":
		a.Type = model.ApplicationTypeApp
		a.Name = e.App
	default:
		return nil
	}
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := s.saveApplicationLocked(db, a)
	return err
}

func (s *EncryptedStore) SaveApplication(a *model.Application) (*model.Application, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.saveApplicationLocked(s.db, a)
	if err != nil {
		return nil, err
	}
	s.markDirty()
	if err := s.flush(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *EncryptedStore) saveApplicationLocked(db querier, a *model.Application) (*model.Application, error) {
	field, value := a.UpsertKey()
	column := "name"
	if field == "url" {
		column = "url"
	}
	var id int64
	err := db.QueryRow(fmt.Sprintf(`SELECT id FROM application WHERE %s = ?`, column), value).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		now := time.Now().UTC()
		res, err := db.Exec(
			`INSERT INTO application (type, name, url, alias, is_blocked, is_ignore_idle_time, color, created_at, updated_at, criteria)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(a.Type), nullable(a.Name), nullable(a.URL), a.Alias, a.IsBlocked, a.IsIgnoreIdleTime, a.Color,
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), a.Criteria,
		)
		if err != nil {
			return nil, fmt.Errorf("storage: insert application: %w", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("storage: insert application: %w", err)
		}
		saved := *a
		saved.ID = newID
		saved.CreatedAt = now
		saved.UpdatedAt = now
		return &saved, nil
	case err != nil:
		return nil, fmt.Errorf("storage: lookup application: %w", err)
	default:
		now := time.Now().UTC()
		if _, err := db.Exec(
			`UPDATE application SET type=?, alias=?, is_blocked=?, is_ignore_idle_time=?, color=?, updated_at=?, criteria=? WHERE id=?`,
			string(a.Type), a.Alias, a.IsBlocked, a.IsIgnoreIdleTime, a.Color, now.Format(time.RFC3339Nano), a.Criteria, id,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", sderr.ErrIntegrityViolation, err)
		}
		saved := *a
		saved.ID = id
		saved.UpdatedAt = now
		return &saved, nil
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *EncryptedStore) RetrieveApplications() ([]*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT id, type, name, url, alias, is_blocked, is_ignore_idle_time, color, created_at, updated_at, criteria FROM application`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list applications: %w", err)
	}
	defer rows.Close()
	var out []*model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan application: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var (
		id                      int64
		typ                     string
		name, url               sql.NullString
		alias, color, criteria  sql.NullString
		createdAt, updatedAt    sql.NullString
		isBlocked, isIgnoreIdle bool
	)
	if err := row.Scan(&id, &typ, &name, &url, &alias, &isBlocked, &isIgnoreIdle, &color, &createdAt, &updatedAt, &criteria); err != nil {
		return nil, err
	}
	a := &model.Application{
		ID:               id,
		Type:             model.ApplicationType(typ),
		Name:             name.String,
		URL:              url.String,
		Alias:            alias.String,
		IsBlocked:        isBlocked,
		IsIgnoreIdleTime: isIgnoreIdle,
		Color:            color.String,
		Criteria:         criteria.String,
	}
	if createdAt.Valid {
		if t, err := timeutil.Parse(createdAt.String); err == nil {
			a.CreatedAt = t
		}
	}
	if updatedAt.Valid {
		if t, err := timeutil.Parse(updatedAt.String); err == nil {
			a.UpdatedAt = t
		}
	}
	return a, nil
}

// IsBlocked implements §4.5's blocking predicate, matching MemoryStore: app
// name match, or normalised host-of-url match, against an is_blocked
// application.
func (s *EncryptedStore) IsBlocked(appName, rawURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := strings.ToLower(hostOf(rawURL))
	rows, err := s.db.Query(`SELECT name, url FROM application WHERE is_blocked = 1`)
	if err != nil {
		return false, fmt.Errorf("storage: check blocked: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, url sql.NullString
		if err := rows.Scan(&name, &url); err != nil {
			return false, err
		}
		if name.Valid && name.String != "" && name.String == appName {
			return true, nil
		}
		if url.Valid && url.String != "" && host != "" && strings.ToLower(hostOf(url.String)) == host {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *EncryptedStore) SaveSetting(setting model.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	valueJSON, err := json.Marshal(setting.Value)
	if err != nil {
		return fmt.Errorf("storage: marshal setting value: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO setting (code, value_text) VALUES (?, ?)
		 ON CONFLICT(code) DO UPDATE SET value_text = excluded.value_text`,
		setting.Code, string(valueJSON),
	); err != nil {
		return fmt.Errorf("storage: save setting: %w", err)
	}
	s.markDirty()
	return s.flush()
}

func (s *EncryptedStore) RetrieveSetting(code string) (model.Setting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var valueText string
	err := s.db.QueryRow(`SELECT value_text FROM setting WHERE code = ?`, code).Scan(&valueText)
	if err == sql.ErrNoRows {
		return model.Setting{}, false, nil
	}
	if err != nil {
		return model.Setting{}, false, fmt.Errorf("storage: retrieve setting: %w", err)
	}
	var value any
	if err := json.Unmarshal([]byte(valueText), &value); err != nil {
		return model.Setting{}, false, fmt.Errorf("storage: decode setting %q: %w", code, err)
	}
	return model.Setting{Code: code, Value: value}, true, nil
}

func (s *EncryptedStore) RetrieveAllSettings() ([]model.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT code, value_text FROM setting`)
	if err != nil {
		return nil, fmt.Errorf("storage: list settings: %w", err)
	}
	defer rows.Close()
	var out []model.Setting
	for rows.Next() {
		var code, valueText string
		if err := rows.Scan(&code, &valueText); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(valueText), &value); err != nil {
			log.Errorf(fmt.Sprintf("decode setting %q", code), err)
			continue
		}
		out = append(out, model.Setting{Code: code, Value: value})
	}
	return out, rows.Err()
}
