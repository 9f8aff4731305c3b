package metrics

import (
	"time"

	"github.com/cuemby/sundial/pkg/model"
)

// BucketLister is the slice of storage.Store the Collector needs. Defined
// locally rather than importing pkg/storage directly, since pkg/storage
// imports pkg/metrics to record ingest and query instrumentation.
type BucketLister interface {
	Buckets() (map[string]model.Metadata, error)
}

// Collector periodically samples gauge-shaped metrics off the store that
// counters and histograms can't capture inline (e.g. BucketsTotal), the
// same polling shape the teacher's own collector used against its manager.
type Collector struct {
	store  BucketLister
	stopCh chan struct{}
}

// NewCollector returns a Collector sampling store every tick.
func NewCollector(store BucketLister) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	buckets, err := c.store.Buckets()
	if err != nil {
		return
	}
	BucketsTotal.Set(float64(len(buckets)))
}
