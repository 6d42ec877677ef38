package tagcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	cc "github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/keys"
	"github.com/unkn0wn-root/tagcache/store"
)

const defaultTTL = 5 * time.Minute

type manager[V any] struct {
	prefix  string
	store   store.Store
	codec   Codec[V]
	log     Logger
	hooks   Hooks
	metrics Collector
	ttl     time.Duration
	enabled bool

	stats stats
}

func newManager[V any](opts Options[V]) (*manager[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("tagcache: store is required")
	}
	if opts.Prefix == "" {
		return nil, fmt.Errorf("tagcache: prefix is required")
	}

	m := &manager[V]{
		prefix:  opts.Prefix,
		store:   opts.Store,
		enabled: !opts.Disabled,
	}

	if opts.Codec != nil {
		m.codec = opts.Codec
	} else {
		m.codec = cc.JSON[V]{}
	}
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.metrics = coalesce[Collector](opts.Metrics, NopCollector{})
	m.ttl = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)

	return m, nil
}

func (m *manager[V]) Enabled() bool { return m.enabled }

func (m *manager[V]) Close(ctx context.Context) error {
	if m.store != nil {
		return m.store.Close(ctx)
	}
	return nil
}

// effectiveTTL maps the API TTL to the store TTL: 0 applies the default,
// Forever (or any negative value) disables expiry.
func (m *manager[V]) effectiveTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return m.ttl
	case ttl < 0:
		return 0
	default:
		return ttl
	}
}

func (m *manager[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if !m.enabled {
		return zero, false
	}
	return m.getAt(ctx, keys.Join(m.prefix, key))
}

func (m *manager[V]) GetOrDefault(ctx context.Context, key string, def V) V {
	if v, ok := m.Get(ctx, key); ok {
		return v
	}
	return def
}

func (m *manager[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	if !m.enabled {
		return true
	}
	return m.setAt(ctx, keys.Join(m.prefix, key), value, ttl)
}

func (m *manager[V]) Delete(ctx context.Context, key string) bool {
	if !m.enabled {
		return true
	}
	sk := keys.Join(m.prefix, key)
	if err := m.store.Delete(ctx, sk); err != nil {
		m.hooks.BackendUnavailable("delete", sk, err)
		m.log.Warn("cache delete failed", Fields{"key": sk, "err": err.Error()})
		return false
	}
	m.deleteDone(1)
	return true
}

func (m *manager[V]) Has(ctx context.Context, key string) bool {
	if !m.enabled {
		return false
	}
	sk := keys.Join(m.prefix, key)
	ok, err := m.store.Has(ctx, sk)
	if err != nil {
		m.hooks.BackendUnavailable("get", sk, err)
		m.log.Warn("cache has failed; treating as absent", Fields{"key": sk, "err": err.Error()})
		return false
	}
	return ok
}

func (m *manager[V]) Remember(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := m.Get(ctx, key); ok {
		return v, nil
	}
	v, err := produce(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	// best effort: a failed write just means the next caller recomputes
	m.Set(ctx, key, v, ttl)
	return v, nil
}

func (m *manager[V]) GetMulti(ctx context.Context, lkeys []string) (map[string]V, []string) {
	out := make(map[string]V, len(lkeys))
	if !m.enabled {
		return out, append([]string(nil), lkeys...)
	}
	if len(lkeys) == 0 {
		return out, nil
	}

	sks := make([]string, len(lkeys))
	for i, k := range lkeys {
		sks[i] = keys.Join(m.prefix, k)
	}
	got, err := m.store.GetMulti(ctx, sks)
	if err != nil {
		m.hooks.BackendUnavailable("getmulti", "", err)
		m.log.Warn("cache getmulti failed; treating all as misses", Fields{"keys": len(lkeys), "err": err.Error()})
		m.missN(int64(len(lkeys)))
		return out, append([]string(nil), lkeys...)
	}

	var missing []string
	for i, k := range lkeys {
		raw, ok := got[sks[i]]
		if !ok {
			m.miss()
			missing = append(missing, k)
			continue
		}
		v, derr := m.codec.Decode(raw)
		if derr != nil {
			m.selfHeal(ctx, sks[i])
			m.miss()
			missing = append(missing, k)
			continue
		}
		m.hit()
		out[k] = v
	}
	return out, missing
}

func (m *manager[V]) SetMulti(ctx context.Context, items map[string]V, ttl time.Duration) bool {
	if !m.enabled || len(items) == 0 {
		return true
	}
	payloads := make(map[string][]byte, len(items))
	for k, v := range items {
		b, err := m.codec.Encode(v)
		if err != nil {
			m.log.Warn("cache setmulti skipped; encode failed", Fields{"key": k, "err": err.Error()})
			return false
		}
		payloads[keys.Join(m.prefix, k)] = b
	}
	if err := m.store.SetMulti(ctx, payloads, m.effectiveTTL(ttl)); err != nil {
		m.hooks.BackendUnavailable("setmulti", "", err)
		m.log.Warn("cache setmulti failed", Fields{"keys": len(items), "err": err.Error()})
		return false
	}
	m.setDone(int64(len(items)))
	return true
}

func (m *manager[V]) DeleteMulti(ctx context.Context, lkeys []string) bool {
	if !m.enabled || len(lkeys) == 0 {
		return true
	}
	sks := make([]string, len(lkeys))
	for i, k := range lkeys {
		sks[i] = keys.Join(m.prefix, k)
	}
	if err := m.store.DeleteMulti(ctx, sks); err != nil {
		m.hooks.BackendUnavailable("deletemulti", "", err)
		m.log.Warn("cache deletemulti failed", Fields{"keys": len(lkeys), "err": err.Error()})
		return false
	}
	m.deleteDone(int64(len(lkeys)))
	return true
}

func (m *manager[V]) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if !m.enabled {
		return 0, fmt.Errorf("tagcache: cache disabled")
	}
	sk := keys.Join(m.prefix, key)

	if inc, ok := m.store.(store.Incrementer); ok {
		v, err := inc.Increment(ctx, sk, delta)
		if err == nil {
			return v, nil
		}
		// A wrapping store can satisfy the assertion while its actual
		// backend cannot increment; that case falls through to emulation.
		if !errors.Is(err, store.ErrNoIncrement) {
			m.hooks.BackendUnavailable("increment", sk, err)
			return 0, err
		}
	}

	// Emulation: get, add, set. Not atomic - concurrent increments on a
	// backend without native support can lose updates.
	m.hooks.IncrementEmulated(sk)
	raw, _, err := m.store.Get(ctx, sk)
	if err != nil {
		m.hooks.BackendUnavailable("increment", sk, err)
		return 0, err
	}
	cur, err := store.ParseCounter(raw)
	if err != nil {
		return 0, err
	}
	cur += delta
	ok, err := m.store.Set(ctx, sk, store.FormatCounter(cur), 0)
	if err != nil {
		m.hooks.BackendUnavailable("increment", sk, err)
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("tagcache: store rejected counter write for %q", key)
	}
	return cur, nil
}

func (m *manager[V]) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return m.Increment(ctx, key, -delta)
}

func (m *manager[V]) Tags(tags ...string) Tagged[V] {
	return &tagged[V]{m: m, tags: keys.SortTags(tags)}
}

func (m *manager[V]) FlushTags(ctx context.Context, tags ...string) error {
	if !m.enabled {
		return nil
	}
	var errs []error
	for _, tag := range keys.SortTags(tags) {
		if err := m.rotateToken(ctx, tag); err != nil {
			errs = append(errs, &FlushError{Tag: tag, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (m *manager[V]) Stats() StatsSnapshot { return m.stats.snapshot() }
func (m *manager[V]) ResetStats()          { m.stats.reset() }

// getAt reads and decodes the entry at an already-derived storage key.
func (m *manager[V]) getAt(ctx context.Context, sk string) (V, bool) {
	var zero V
	raw, ok, err := m.store.Get(ctx, sk)
	if err != nil {
		m.hooks.BackendUnavailable("get", sk, err)
		m.log.Warn("cache get failed; treating as miss", Fields{"key": sk, "err": err.Error()})
		m.miss()
		return zero, false
	}
	if !ok {
		m.miss()
		return zero, false
	}
	v, err := m.codec.Decode(raw)
	if err != nil {
		m.selfHeal(ctx, sk)
		m.miss()
		return zero, false
	}
	m.hit()
	return v, true
}

// setAt encodes and writes value at an already-derived storage key.
func (m *manager[V]) setAt(ctx context.Context, sk string, value V, ttl time.Duration) bool {
	payload, err := m.codec.Encode(value)
	if err != nil {
		m.log.Warn("cache set skipped; encode failed", Fields{"key": sk, "err": err.Error()})
		return false
	}
	ok, err := m.store.Set(ctx, sk, payload, m.effectiveTTL(ttl))
	if err != nil {
		m.hooks.BackendUnavailable("set", sk, err)
		m.log.Warn("cache set failed", Fields{"key": sk, "err": err.Error()})
		return false
	}
	if !ok {
		m.log.Debug("cache set rejected by store (pressure)", Fields{"key": sk})
		return false
	}
	m.setDone(1)
	return true
}

// selfHeal deletes a blob that failed to decode so the next read repopulates.
func (m *manager[V]) selfHeal(ctx context.Context, sk string) {
	_ = m.store.Delete(ctx, sk)
	m.hooks.EntryCorrupt(sk)
	m.log.Warn("corrupt cache entry deleted", Fields{"key": sk})
}

func (m *manager[V]) hit() {
	m.stats.hits.Add(1)
	m.metrics.IncCounter(MetricHits, 1)
}

func (m *manager[V]) miss() { m.missN(1) }

func (m *manager[V]) missN(n int64) {
	m.stats.misses.Add(n)
	m.metrics.IncCounter(MetricMisses, n)
}

func (m *manager[V]) setDone(n int64) {
	m.stats.sets.Add(n)
	m.metrics.IncCounter(MetricSets, n)
}

func (m *manager[V]) deleteDone(n int64) {
	m.stats.deletes.Add(n)
	m.metrics.IncCounter(MetricDeletes, n)
}
