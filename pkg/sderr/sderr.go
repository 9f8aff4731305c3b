// Package sderr defines the sentinel error taxonomy shared by storage,
// credential, and query packages. Callers match with errors.Is/errors.As,
// never by string comparison.
package sderr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Err*) to add context.
var (
	// ErrNotReady means credentials are missing or undecryptable. The store
	// refuses further operations until the caller re-authenticates.
	ErrNotReady = errors.New("sundial: store not ready")

	// ErrBucketNotFound is returned by update_bucket, delete_bucket,
	// get_metadata, and datastore bucket lookup.
	ErrBucketNotFound = errors.New("sundial: bucket not found")

	// ErrQueryTypeMismatch signals a query function argument of the wrong
	// shape. Use AsTypeMismatch to recover structured detail.
	ErrQueryTypeMismatch = errors.New("sundial: query argument type mismatch")

	// ErrQueryBucketMissing means a query referenced a bucket that does not
	// exist; this is a query-authoring error, not a runtime failure.
	ErrQueryBucketMissing = errors.New("sundial: query references missing bucket")

	// ErrIntegrityViolation is a recoverable duplicate-unique-key condition
	// on an application upsert.
	ErrIntegrityViolation = errors.New("sundial: integrity violation")

	// ErrDecode is a JSON payload that does not decode; model.Event's
	// UnmarshalJSON wraps it. Storage read paths do not return ErrDecode
	// (see pkg/storage's Failure Semantics for how each handles corrupt JSON).
	ErrDecode = errors.New("sundial: decode error")

	// ErrDurationInvalid is a negative duration presented to an event
	// constructor or produced by a heartbeat merge.
	ErrDurationInvalid = errors.New("sundial: invalid duration")

	// ErrFatal covers migration failure and encrypted-file open failure
	// after credentials were presented; it surfaces to the caller.
	ErrFatal = errors.New("sundial: fatal store error")
)

// TypeMismatch carries the structured detail of ErrQueryTypeMismatch: the
// offending parameter name and the expected vs. actual type.
type TypeMismatch struct {
	Param    string
	Expected string
	Actual   string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("parameter %q: expected %s, got %s", e.Param, e.Expected, e.Actual)
}

func (e *TypeMismatch) Unwrap() error {
	return ErrQueryTypeMismatch
}

// NewTypeMismatch builds a TypeMismatch error wrapping ErrQueryTypeMismatch.
func NewTypeMismatch(param, expected, actual string) error {
	return &TypeMismatch{Param: param, Expected: expected, Actual: actual}
}

// BucketMissing carries the bucket id a query referenced but could not find.
type BucketMissing struct {
	BucketID string
}

func (e *BucketMissing) Error() string {
	return fmt.Sprintf("query references missing bucket %q", e.BucketID)
}

func (e *BucketMissing) Unwrap() error {
	return ErrQueryBucketMissing
}

// NewBucketMissing builds a BucketMissing error wrapping ErrQueryBucketMissing.
func NewBucketMissing(bucketID string) error {
	return &BucketMissing{BucketID: bucketID}
}
