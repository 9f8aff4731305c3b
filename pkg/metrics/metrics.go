package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store lifecycle metrics
	StoreOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sundial_store_open",
			Help: "Whether the encrypted store is currently open (1) or not (0)",
		},
	)

	StoreOpenDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sundial_store_open_duration_seconds",
			Help:    "Time taken to complete the credential-gated open protocol",
			Buckets: prometheus.DefBuckets,
		},
	)

	BucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sundial_buckets_total",
			Help: "Total number of buckets in the store",
		},
	)

	// Ingest metrics
	EventsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sundial_events_inserted_total",
			Help: "Total number of events inserted by bucket type",
		},
		[]string{"bucket_type"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sundial_events_dropped_total",
			Help: "Total number of events dropped on ingest (missing app or title) by bucket type",
		},
		[]string{"bucket_type"},
	)

	HeartbeatCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sundial_heartbeat_coalesced_total",
			Help: "Total number of heartbeats merged into an existing event instead of inserted fresh",
		},
		[]string{"bucket_type"},
	)

	InsertDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sundial_insert_duration_seconds",
			Help:    "Time taken by insert_one, including coalesce lookup and application upsert",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query evaluator metrics
	QueryEvalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sundial_query_eval_duration_seconds",
			Help:    "Time taken to evaluate a query function by function name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"function"},
	)

	QueryEvalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sundial_query_eval_errors_total",
			Help: "Total number of query evaluation errors by function and error kind",
		},
		[]string{"function", "kind"},
	)

	QueryBucketMissingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sundial_query_bucket_missing_total",
			Help: "Total number of query evaluations that referenced a missing bucket",
		},
	)

	// Range-scan / dashboard aggregate metrics
	RangeScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sundial_range_scan_duration_seconds",
			Help:    "Time taken by get_events range scans, coarse SQL prune plus Go-side trim",
			Buckets: prometheus.DefBuckets,
		},
	)

	RangeScanEventsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sundial_range_scan_events_returned",
			Help:    "Number of events returned per get_events call",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	DashboardQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sundial_dashboard_query_duration_seconds",
			Help:    "Time taken by a dashboard aggregate query by query name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// Credential gate metrics
	CredentialCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sundial_credential_cache_hits_total",
			Help: "Total number of credential blob lookups served from the in-process cache",
		},
	)

	CredentialCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sundial_credential_cache_misses_total",
			Help: "Total number of credential blob lookups that fell through to the OS secret store",
		},
	)

	NotReadyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sundial_not_ready_total",
			Help: "Total number of times the open protocol returned not-ready",
		},
	)

	StaleFilesRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sundial_stale_files_removed_total",
			Help: "Total number of stale per-user database files removed on absent or changed identity",
		},
	)
)

func init() {
	prometheus.MustRegister(
		StoreOpen,
		StoreOpenDuration,
		BucketsTotal,
		EventsInsertedTotal,
		EventsDroppedTotal,
		HeartbeatCoalescedTotal,
		InsertDuration,
		QueryEvalDuration,
		QueryEvalErrorsTotal,
		QueryBucketMissingTotal,
		RangeScanDuration,
		RangeScanEventsReturned,
		DashboardQueryDuration,
		CredentialCacheHitsTotal,
		CredentialCacheMissesTotal,
		NotReadyTotal,
		StaleFilesRemovedTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
