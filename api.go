package tagcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/store"
)

// Codec re-exports codec.Codec so callers configuring Options don't need a
// second import.
type Codec[V any] = c.Codec[V]

// Forever marks an entry that never expires. Passing ttl=0 to Cache methods
// applies the manager's default TTL instead; stores are never asked to
// persist a negative TTL.
const Forever time.Duration = -1

// Cache is the application-facing cache API. V is the caller's value type;
// serialization is handled by a pluggable Codec[V].
//
// Read methods never return backend errors: any store failure degrades to a
// miss and is logged at warning level, so a broken cache behaves like an
// empty one instead of breaking the application.
type Cache[V any] interface {
	Enabled() bool
	Close(ctx context.Context) error

	// Single-key operations.
	Get(ctx context.Context, key string) (v V, ok bool)
	GetOrDefault(ctx context.Context, key string, def V) V
	Set(ctx context.Context, key string, value V, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	Has(ctx context.Context, key string) bool

	// Remember returns the cached value for key, or invokes produce on a
	// miss, stores its result with ttl, and returns it. produce is never
	// invoked on a hit. There is no cross-caller mutual exclusion: under
	// concurrent misses for the same key, produce may run more than once
	// (cache stampede). Wrap produce in singleflight if that matters.
	Remember(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) (V, error)) (V, error)

	// Batch operations. GetMulti returns found values plus the keys that
	// missed, in input order.
	GetMulti(ctx context.Context, keys []string) (map[string]V, []string)
	SetMulti(ctx context.Context, items map[string]V, ttl time.Duration) bool
	DeleteMulti(ctx context.Context, keys []string) bool

	// Counters. Uses the backend's atomic increment when it implements
	// store.Incrementer; otherwise falls back to a read-modify-write
	// emulation that is NOT safe against concurrent increments.
	// Counter keys bypass the codec and must not be read via Get.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Decrement(ctx context.Context, key string, delta int64) (int64, error)

	// Tags returns a view of the cache whose entries carry the given tags.
	// FlushTags invalidates every entry written under any of the tags.
	Tags(tags ...string) Tagged[V]
	FlushTags(ctx context.Context, tags ...string) error

	// Stats returns a snapshot of the hit/miss/set/delete counters.
	Stats() StatsSnapshot
	ResetStats()
}

// Tagged is a tag-scoped view of a Cache. Keys written here are reachable
// only through the same tag set; Flush invalidates all of them at once.
type Tagged[V any] interface {
	Get(ctx context.Context, key string) (v V, ok bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	Remember(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) (V, error)) (V, error)

	// Flush rotates the version token of every tag in this view.
	Flush(ctx context.Context) error
}

// Options tune the cache. Only Prefix and Store are required; others have
// sensible defaults.
type Options[V any] struct {
	// Required
	Prefix string      // logical namespace to avoid collisions, e.g. "app", "user"
	Store  store.Store // backend; see the store subpackages

	Codec      Codec[V]      // nil => codec.JSON[V]{}
	Logger     Logger        // nil => NopLogger
	Hooks      Hooks         // nil => NopHooks
	Metrics    Collector     // nil => NopCollector (process-local Stats always kept)
	DefaultTTL time.Duration // applied when ttl=0; 0 => 5m
	Disabled   bool          // default false (enabled)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newManager[V](opts)
}
