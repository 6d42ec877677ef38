// Package store defines the backend abstraction used by tagcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended
// or appended metadata, no re-encoding, no mutation). If a backend performs
// internal transforms (e.g. compression), they MUST be fully reversed so that
// the bytes returned by Get are identical to the bytes provided to Set.
//
// Important: the "<prefix>:tagversion:" keyspace is owned by tagcache.
// External code MUST NOT write values under this prefix; doing so corrupts
// tag invalidation state.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoIncrement is returned by an Incrementer whose backing store turns out
// to lack native atomic increments, e.g. a composite store whose primary
// layer has none. Callers fall back to read-modify-write emulation when they
// see it.
var ErrNoIncrement = errors.New("store: native increment not supported")

// Store is a minimal byte store with TTLs.
// Must be safe for concurrent use by multiple goroutines for the lifetime of
// the process. TTL is a duration at the call site; implementations convert it
// to an absolute expiry internally. ttl <= 0 means the entry never expires.
//
// Failure policy: any I/O failure must surface as a returned error, never a
// panic. Callers treat errors as "backend unavailable" and degrade to a miss.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Delete removes a key (best-effort; deleting a missing key is not an error).
	Delete(ctx context.Context, key string) error

	// Clear removes every entry held by the store.
	Clear(ctx context.Context) error

	// Has reports whether a live (non-expired) entry exists for key.
	Has(ctx context.Context, key string) (bool, error)

	// GetMulti returns the live entries among keys. Missing keys are simply
	// absent from the result map.
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMulti stores every item with the same TTL.
	SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// DeleteMulti removes every key (best-effort).
	DeleteMulti(ctx context.Context, keys []string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Incrementer is an optional capability a Store may implement when the
// backend supports atomic numeric increments (e.g. redis INCRBY, a SQL
// UPDATE inside a transaction). Counters are stored as ASCII decimal so the
// native path and the caller-side emulation interoperate on the same keys.
//
// Callers must type-assert: st, ok := s.(store.Incrementer). A wrapping
// store may satisfy the assertion without knowing whether its layers do;
// such a store reports ErrNoIncrement and the caller emulates instead.
type Incrementer interface {
	// Increment atomically adds delta (may be negative) to the counter at
	// key, creating it at 0 first if absent, and returns the new value.
	// Returns an error wrapping ErrNoIncrement when the underlying backend
	// cannot increment atomically after all.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
}

