package query

import (
	"time"

	"github.com/cuemby/sundial/pkg/transform"
)

// chunkPulsetime is the default chunk_events_by_key grouping window, per the
// source's default pulsetime=5.0.
const chunkPulsetime = 5 * time.Second

// registerTransforms wires every pure event-list operator straight through
// to pkg/transform, matching the source's q2_* wrappers one for one.
func registerTransforms(r *Registry) {
	r.register("filter_keyvals", []ArgType{TypeEvents, TypeString, TypeStringList}, func(_ *Registry, args []any) (any, error) {
		return transform.FilterKeyvals(asEvents(args[0]), asString(args[1]), asStringList(args[2]), false), nil
	})
	r.register("exclude_keyvals", []ArgType{TypeEvents, TypeString, TypeStringList}, func(_ *Registry, args []any) (any, error) {
		return transform.FilterKeyvals(asEvents(args[0]), asString(args[1]), asStringList(args[2]), true), nil
	})
	r.register("filter_keyvals_regex", []ArgType{TypeEvents, TypeString, TypeString}, func(_ *Registry, args []any) (any, error) {
		return transform.FilterKeyvalsRegex(asEvents(args[0]), asString(args[1]), asString(args[2]))
	})
	r.register("filter_period_intersect", []ArgType{TypeEvents, TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.FilterPeriodIntersect(asEvents(args[0]), asEvents(args[1])), nil
	})
	r.register("period_union", []ArgType{TypeEvents, TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.PeriodUnion(asEvents(args[0]), asEvents(args[1])), nil
	})
	r.register("limit_events", []ArgType{TypeEvents, TypeInt}, func(_ *Registry, args []any) (any, error) {
		return transform.LimitEvents(asEvents(args[0]), asInt(args[1])), nil
	})
	r.register("merge_events_by_keys", []ArgType{TypeEvents, TypeStringList}, func(_ *Registry, args []any) (any, error) {
		return transform.MergeEventsByKeys(asEvents(args[0]), asStringList(args[1])), nil
	})
	r.register("chunk_events_by_key", []ArgType{TypeEvents, TypeString}, func(_ *Registry, args []any) (any, error) {
		return transform.ChunkEventsByKey(asEvents(args[0]), asString(args[1]), chunkPulsetime), nil
	})
	r.register("sort_by_timestamp", []ArgType{TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.SortByTimestamp(asEvents(args[0])), nil
	})
	r.register("sort_by_duration", []ArgType{TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.SortByDuration(asEvents(args[0])), nil
	})
	r.register("sum_durations", []ArgType{TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.SumDurations(asEvents(args[0])), nil
	})
	r.register("concat", []ArgType{TypeEvents, TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.Concat(asEvents(args[0]), asEvents(args[1])), nil
	})
	r.register("union_no_overlap", []ArgType{TypeEvents, TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.UnionNoOverlap(asEvents(args[0]), asEvents(args[1])), nil
	})
	r.register("flood", []ArgType{TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.Flood(asEvents(args[0])), nil
	})
	r.register("split_url_events", []ArgType{TypeEvents}, func(_ *Registry, args []any) (any, error) {
		return transform.SplitURLEvents(asEvents(args[0])), nil
	})
	r.register("simplify_window_titles", []ArgType{TypeEvents, TypeString}, func(_ *Registry, args []any) (any, error) {
		return transform.SimplifyString(asEvents(args[0]), asString(args[1])), nil
	})
	r.register("nop", nil, func(_ *Registry, _ []any) (any, error) {
		return 1, nil
	})
	r.register("categorize", []ArgType{TypeEvents, TypeAny}, func(_ *Registry, args []any) (any, error) {
		classes, ok := args[1].([]transform.CategoryClass)
		if !ok {
			return nil, typeErr("classes", "[]transform.CategoryClass", args[1])
		}
		return transform.Categorize(asEvents(args[0]), classes), nil
	})
	r.register("tag", []ArgType{TypeEvents, TypeAny}, func(_ *Registry, args []any) (any, error) {
		classes, ok := args[1].([]transform.TagClass)
		if !ok {
			return nil, typeErr("classes", "[]transform.TagClass", args[1])
		}
		return transform.Tag(asEvents(args[0]), classes), nil
	})
}
