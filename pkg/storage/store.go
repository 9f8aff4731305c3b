// Package storage implements §4.3's StorageInterface contract and its two
// backends: an in-memory reference store (memory.go) and the persistent,
// encrypted SQLite-backed store (encrypted.go, migrate.go, dashboard.go).
package storage

import (
	"time"

	"github.com/cuemby/sundial/pkg/model"
)

// Store is the contract every backend (MemoryStore, EncryptedStore) must
// satisfy: bucket CRUD, event CRUD with duration-aware range semantics,
// dashboard/most-used-apps aggregates, and settings/application upserts.
type Store interface {
	// Buckets
	CreateBucket(b *model.Bucket) error
	UpdateBucket(id string, fields map[string]any) error
	DeleteBucket(id string) error
	Buckets() (map[string]model.Metadata, error)
	GetMetadata(id string) (model.Metadata, error)

	// Events
	InsertOne(bucketID string, e *model.Event) (*model.Event, error)
	InsertMany(bucketID string, events []*model.Event) error
	GetEvent(bucketID string, id int64) (*model.Event, error)
	GetEvents(bucketID string, limit int, start, end *time.Time) ([]*model.Event, error)
	GetEventCount(bucketID string, start, end *time.Time) (int, error)
	DeleteEvent(bucketID string, id int64) error
	Replace(bucketID string, id int64, e *model.Event) error
	ReplaceLast(bucketID string, e *model.Event) error

	// Aggregates
	GetMostUsedApps(start, end time.Time) ([]AppUsage, error)
	GetDashboardEvents(start, end time.Time) ([]DashboardEvent, error)
	GetNonSyncEvents() ([]DashboardEvent, error)
	UpdateServerSyncStatus(ids []int64, status int) error

	// Settings
	SaveSetting(s model.Setting) error
	RetrieveSetting(code string) (model.Setting, bool, error)
	RetrieveAllSettings() ([]model.Setting, error)

	// Applications
	SaveApplication(a *model.Application) (*model.Application, error)
	RetrieveApplications() ([]*model.Application, error)
	IsBlocked(appName, rawURL string) (bool, error)

	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*EncryptedStore)(nil)
)

// AppUsage is one row of GetMostUsedApps: totalHours/Minutes/Seconds are the
// hh/mm/ss breakdown of totalDuration, matching §4.5's dashboard projection.
type AppUsage struct {
	App           string
	TotalHours    int
	TotalMinutes  int
	TotalSeconds  int
	TotalDuration int64 // seconds
	URL           string
}

// DashboardEvent is the projection used by get_dashboard_events and
// get_non_sync_events per §4.5: {start, end, event_id, duration, timestamp,
// data, id, bucket_id, application_name, app, title, url}.
type DashboardEvent struct {
	Start           time.Time
	End             time.Time
	EventID         int64
	Duration        float64
	Timestamp       time.Time
	Data            map[string]any
	ID              int64
	BucketID        string
	ApplicationName string
	App             string
	Title           string
	URL             string
}
