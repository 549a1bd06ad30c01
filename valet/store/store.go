// Package store defines the keyed store used for pending actions, session
// state, and idempotency records.
//
// The interface is deliberately small: the router's exactly-once guarantees
// rest on exactly two atomic primitives, DeleteIfPresent (one caller wins
// the token) and PutIfAbsent (one caller wins the idempotency slot). Both
// must be atomic by construction in every implementation, not an accidental
// property of one backing store.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached.
// This is the only store error class that surfaces to the transport layer
// as a hard failure; everything else is handled inside the router.
var ErrUnavailable = errors.New("keyed store unavailable")

// KeyValue is a keyed store with TTL support.
//
// Values are opaque byte slices; callers own the encoding. Keys are
// namespaced by the caller (e.g. "pending:", "session:", "idem:") so one
// backing store can serve all three concerns.
type KeyValue interface {
	// Put stores value under key. A ttl of zero means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key. The second return is false when the
	// key is absent or expired; an expired key is indistinguishable from
	// a missing one.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// DeleteIfPresent atomically removes key and returns its value.
	// At most one concurrent caller observes ok=true for a given key.
	DeleteIfPresent(ctx context.Context, key string) ([]byte, bool, error)

	// PutIfAbsent stores value under key only if the key is absent.
	// Returns true if this call stored the value. At most one concurrent
	// caller observes true for a given key.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Keys returns all live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
