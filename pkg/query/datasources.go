package query

import (
	"fmt"
	"strings"

	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/cuemby/sundial/pkg/timeutil"
)

// registerDataSources wires query_bucket, query_bucket_eventcount, and
// find_bucket: the three functions that read the registry's store and
// namespace instead of operating purely on an event list.
func registerDataSources(r *Registry) {
	r.register("query_bucket", []ArgType{TypeString}, queryBucket)
	r.register("query_bucket_eventcount", []ArgType{TypeString}, queryBucketEventcount)
	r.register("find_bucket", []ArgType{TypeString}, findBucket)
}

func verifyBucketExists(r *Registry, bucketID string) error {
	if _, err := r.store.GetMetadata(bucketID); err != nil {
		return sderr.NewBucketMissing(bucketID)
	}
	return nil
}

func queryBucket(r *Registry, args []any) (any, error) {
	bucketID := asString(args[0])
	if err := verifyBucketExists(r, bucketID); err != nil {
		return nil, err
	}
	start, end, err := r.namespace.StartEnd()
	if err != nil {
		return nil, fmt.Errorf("query_bucket: %w", err)
	}
	startTime, err := timeutil.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("query_bucket: unable to parse starttime/endtime: %w", err)
	}
	endTime, err := timeutil.Parse(end)
	if err != nil {
		return nil, fmt.Errorf("query_bucket: unable to parse starttime/endtime: %w", err)
	}
	return r.store.GetEvents(bucketID, -1, &startTime, &endTime)
}

func queryBucketEventcount(r *Registry, args []any) (any, error) {
	bucketID := asString(args[0])
	if err := verifyBucketExists(r, bucketID); err != nil {
		return nil, err
	}
	start, end, err := r.namespace.StartEnd()
	if err != nil {
		return nil, fmt.Errorf("query_bucket_eventcount: %w", err)
	}
	startTime, err := timeutil.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("query_bucket_eventcount: unable to parse starttime/endtime: %w", err)
	}
	endTime, err := timeutil.Parse(end)
	if err != nil {
		return nil, fmt.Errorf("query_bucket_eventcount: unable to parse starttime/endtime: %w", err)
	}
	return r.store.GetEventCount(bucketID, &startTime, &endTime)
}

// findBucket returns a bucket id containing filterStr as a substring,
// optionally constrained to the namespace's "hostname" entry (not part of
// the wire {STARTTIME,ENDTIME} namespace, but callers may add it ad hoc the
// way the source's optional hostname parameter worked). When several
// buckets match, which one is returned is not defined.
func findBucket(r *Registry, args []any) (any, error) {
	filterStr := asString(args[0])
	hostname, _ := r.namespace["hostname"].(string)

	buckets, err := r.store.Buckets()
	if err != nil {
		return nil, fmt.Errorf("find_bucket: %w", err)
	}
	for id, meta := range buckets {
		if !strings.Contains(id, filterStr) {
			continue
		}
		if hostname != "" && meta.Hostname != hostname {
			continue
		}
		return id, nil
	}
	return nil, fmt.Errorf("find_bucket: unable to find bucket matching %q (hostname filter set to %q): %w",
		filterStr, hostname, sderr.ErrQueryBucketMissing)
}
