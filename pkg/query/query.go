// Package query implements §4.7's QueryEvaluator: a typed function registry
// over a datastore, consumed by the dashboard layer. Every registered
// function has a fixed arity and argument shape; the evaluator verifies
// argument types before invocation and signals sderr.ErrQueryTypeMismatch on
// mismatch rather than letting a wrong-shaped argument panic downstream.
//
// Two categories of function: data sources (query_bucket,
// query_bucket_eventcount, find_bucket) read the ambient {STARTTIME,ENDTIME}
// namespace and the datastore; everything else is a pure transform over an
// event list, wired directly to pkg/transform.
package query

import (
	"errors"
	"fmt"

	"github.com/cuemby/sundial/pkg/metrics"
	"github.com/cuemby/sundial/pkg/sderr"
	"github.com/cuemby/sundial/pkg/storage"
)

// Namespace is the ambient {STARTTIME, ENDTIME} dictionary passed alongside
// a query; data-source functions read their time window from it.
type Namespace map[string]any

// StartEnd returns the raw STARTTIME/ENDTIME strings from the namespace;
// callers parse them as RFC3339/ISO-8601 instants.
func (ns Namespace) StartEnd() (start, end string, err error) {
	start, ok := ns["STARTTIME"].(string)
	if !ok {
		return "", "", fmt.Errorf("query: namespace missing STARTTIME")
	}
	end, ok = ns["ENDTIME"].(string)
	if !ok {
		return "", "", fmt.Errorf("query: namespace missing ENDTIME")
	}
	return start, end, nil
}

// Func is a registered query function: it receives its already-typechecked
// arguments and returns a result or an error. Errors returned here should
// already be wrapped in one of sderr's query sentinels where applicable.
type Func func(r *Registry, args []any) (any, error)

// funcDef pairs a Func with its declared argument shape for typechecking.
type funcDef struct {
	name    string
	argSpec []ArgType
	call    Func
}

// Registry is a QueryEvaluator bound to one datastore and one query
// namespace, matching the source's per-evaluation functions dict plus
// {datastore, namespace} closure.
type Registry struct {
	store     storage.Store
	namespace Namespace
	funcs     map[string]funcDef
}

// NewRegistry returns a Registry with every built-in function registered,
// bound to store and namespace.
func NewRegistry(store storage.Store, namespace Namespace) *Registry {
	r := &Registry{
		store:     store,
		namespace: namespace,
		funcs:     map[string]funcDef{},
	}
	registerDataSources(r)
	registerTransforms(r)
	return r
}

// register adds fn under name with the given argument shape. Re-registering
// a name overwrites the previous entry.
func (r *Registry) register(name string, argSpec []ArgType, fn Func) {
	r.funcs[name] = funcDef{name: name, argSpec: argSpec, call: fn}
}

// Call looks up fn by name, typechecks args against its declared shape, and
// invokes it, recording evaluation duration and error-kind counters.
func (r *Registry) Call(name string, args []any) (any, error) {
	def, ok := r.funcs[name]
	if !ok {
		metrics.QueryEvalErrorsTotal.WithLabelValues(name, "unknown_function").Inc()
		return nil, fmt.Errorf("query: unknown function %q", name)
	}

	if err := typecheck(def.argSpec, args); err != nil {
		metrics.QueryEvalErrorsTotal.WithLabelValues(name, "type_mismatch").Inc()
		return nil, err
	}

	timer := metrics.NewTimer()
	result, err := def.call(r, args)
	timer.ObserveDurationVec(metrics.QueryEvalDuration, name)
	if err != nil {
		kind := "error"
		if errors.Is(err, sderr.ErrQueryBucketMissing) {
			kind = "bucket_missing"
			metrics.QueryBucketMissingTotal.Inc()
		}
		metrics.QueryEvalErrorsTotal.WithLabelValues(name, kind).Inc()
		return nil, err
	}
	return result, nil
}
