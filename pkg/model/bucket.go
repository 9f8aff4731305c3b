package model

import (
	"encoding/json"
	"time"

	"github.com/cuemby/sundial/pkg/timeutil"
)

// Bucket is a named stream of events from one watcher on one host. ID is the
// external key watchers use; storage backends map it to an internal opaque
// key. Buckets have no intrinsic ordering; lookup is always by ID.
type Bucket struct {
	ID       string
	Type     string
	Client   string
	Hostname string
	Created  time.Time
	Name     string
	Data     map[string]any
}

// Metadata is the subset of Bucket returned by StorageInterface.buckets()/
// get_metadata, matching §6's bucket metadata JSON shape.
type Metadata struct {
	ID       string         `json:"id"`
	Created  string         `json:"created"`
	Name     string         `json:"name,omitempty"`
	Type     string         `json:"type"`
	Client   string         `json:"client"`
	Hostname string         `json:"hostname"`
	Data     map[string]any `json:"data"`
}

// ToMetadata converts b to its wire metadata projection.
func (b *Bucket) ToMetadata() Metadata {
	return Metadata{
		ID:       b.ID,
		Created:  b.Created.Format(time.RFC3339Nano),
		Name:     b.Name,
		Type:     b.Type,
		Client:   b.Client,
		Hostname: b.Hostname,
		Data:     b.Data,
	}
}

// NewBucket constructs a Bucket, defaulting Name to ID and Created to now
// (normalised) when unset, mirroring the reference store's create_bucket.
func NewBucket(id, bucketType, client, hostname, name string, data map[string]any) *Bucket {
	if name == "" {
		name = id
	}
	if data == nil {
		data = map[string]any{}
	}
	return &Bucket{
		ID:       id,
		Type:     bucketType,
		Client:   client,
		Hostname: hostname,
		Created:  timeutil.Normalize(time.Now()),
		Name:     name,
		Data:     data,
	}
}

// MarshalJSON implements Bucket's wire shape.
func (b *Bucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.ToMetadata())
}
