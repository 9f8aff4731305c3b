/*
Package metrics provides Prometheus metrics collection and exposition for
the Sundial store and query engine.

Metrics are defined and registered at package init using the Prometheus
client library, giving observability into store lifecycle, ingest
throughput, heartbeat coalescing, range-scan and dashboard-query latency,
and the credential gate's cache hit rate. Handler() serves them for
scraping by a Prometheus server when an embedder mounts it on its own HTTP
server; sundial itself serves no HTTP endpoint.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                 │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │                                              │          │
	│  │  Store:      open state, buckets, open time │          │
	│  │  Ingest:     inserted, dropped, coalesced   │          │
	│  │  Query:      eval duration, errors, missing │          │
	│  │  Range scan: scan duration, events returned │          │
	│  │  Dashboard:  aggregate query duration       │          │
	│  │  Credential: cache hit/miss, not-ready      │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Metric Reference

sundial_store_open:
  - Type: Gauge
  - Description: 1 if the encrypted store is currently open, else 0

sundial_store_open_duration_seconds:
  - Type: Histogram
  - Description: Time taken to complete the credential-gated open protocol

sundial_buckets_total:
  - Type: Gauge
  - Description: Total number of buckets in the store, sampled by Collector

sundial_events_inserted_total{bucket_type}:
  - Type: Counter
  - Description: Events inserted by bucket type

sundial_events_dropped_total{bucket_type}:
  - Type: Counter
  - Description: Events dropped on ingest (missing app or title) by bucket type

sundial_heartbeat_coalesced_total{bucket_type}:
  - Type: Counter
  - Description: Heartbeats merged into an existing event instead of inserted fresh

sundial_insert_duration_seconds:
  - Type: Histogram
  - Description: Time taken by insert_one end to end

sundial_query_eval_duration_seconds{function}:
  - Type: Histogram
  - Description: Time taken to evaluate a query function, by function name

sundial_query_eval_errors_total{function, kind}:
  - Type: Counter
  - Description: Query evaluation errors by function and error kind

sundial_query_bucket_missing_total:
  - Type: Counter
  - Description: Query evaluations that referenced a missing bucket

sundial_range_scan_duration_seconds:
  - Type: Histogram
  - Description: get_events range-scan duration (coarse SQL prune plus Go-side trim)

sundial_range_scan_events_returned:
  - Type: Histogram
  - Description: Number of events returned per get_events call

sundial_dashboard_query_duration_seconds{query}:
  - Type: Histogram
  - Description: Dashboard aggregate query duration, by query name

sundial_credential_cache_hits_total / sundial_credential_cache_misses_total:
  - Type: Counter
  - Description: Credential blob lookups served from cache vs. fetched from
    the OS secret store

sundial_not_ready_total:
  - Type: Counter
  - Description: Times the open protocol returned not-ready

sundial_stale_files_removed_total:
  - Type: Counter
  - Description: Stale per-user database files removed on absent or changed identity

# Usage

Updating gauges:

	import "github.com/cuemby/sundial/pkg/metrics"

	metrics.StoreOpen.Set(1)
	metrics.BucketsTotal.Set(3)

Updating counters:

	metrics.EventsInsertedTotal.WithLabelValues("window").Inc()
	metrics.HeartbeatCoalescedTotal.WithLabelValues("window").Inc()

Recording histogram observations:

	timer := metrics.NewTimer()
	// ... run insert_one ...
	timer.ObserveDuration(metrics.InsertDuration)

	timer = metrics.NewTimer()
	// ... evaluate query ...
	timer.ObserveDurationVec(metrics.QueryEvalDuration, "query_bucket")

Exposing the endpoint (for a caller that embeds this package behind its own
HTTP mux; sundial itself is a CLI and does not run one):

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

Checking process health from inside sundial, instead of over HTTP:

	metrics.RegisterComponent("store", storeErr == nil, errString(storeErr))
	status := metrics.GetHealth()

# Integration Points

This package integrates with:
  - pkg/storage: insert/coalesce/range-scan/dashboard instrumentation and
    the Collector's periodic bucket-count sampling
  - pkg/query: per-function eval duration and error counters
  - pkg/credential: cache hit/miss and not-ready counters
  - cmd/sundial: calls RegisterComponent/GetHealth directly to
    report subsystem status in its own output; it has no HTTP mux, so
    Handler() is exposed for an embedder but nothing in this repo mounts it
*/
package metrics
