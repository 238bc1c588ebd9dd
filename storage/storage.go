package storage

// This file contains the persistence contract used by the history store and
// the classification of storage failures.

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Backend reads and replaces a single store document. Write must be atomic
// from a reader's point of view: a concurrent Read returns either the old
// or the new document, never a partial one.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	String() string
}

var (
	// ErrNotExist is returned by Read when no document was ever written.
	ErrNotExist = errors.New("store document does not exist")
	// ErrTransient marks failures worth retrying (network, throttling, timeouts).
	// Unmarked failures are permanent.
	ErrTransient = errors.New("transient storage failure")
)

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrTransient)
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Open returns the backend for location. Locations starting with gs:// are
// Google Cloud Storage objects, anything else is a local path.
func Open(ctx context.Context, location string) (Backend, error) {
	if rest, ok := strings.CutPrefix(location, "gs://"); ok {
		bucket, object, found := strings.Cut(rest, "/")
		if !found || bucket == "" || object == "" {
			return nil, errors.Newf("invalid GCS location %q, expected gs://bucket/object", location)
		}
		return NewGCS(ctx, bucket, object)
	}
	if location == "" {
		return nil, errors.New("empty store location")
	}
	return NewFile(location), nil
}
