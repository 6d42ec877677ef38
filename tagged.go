package tagcache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/tagcache/internal/keys"
)

// tagged is a view of the cache scoped to a sorted, de-duplicated tag set.
//
// Every entry written through this view derives its physical key from the
// tags, the version token of each tag at write time, and the logical key.
// Rotating any one token (FlushTags) changes the derived key of every entry
// that carried that tag, so all of them become unreachable at once - no
// enumeration, no per-entry deletion. Old blobs stay in the backend as
// garbage until its own TTL or eviction reclaims them.
type tagged[V any] struct {
	m    *manager[V]
	tags []string
}

func (t *tagged[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if !t.m.enabled {
		return zero, false
	}
	toks, ok := t.m.currentTokens(ctx, t.tags)
	if !ok {
		// A tag without a token has never been written under: guaranteed miss.
		t.m.miss()
		return zero, false
	}
	return t.m.getAt(ctx, t.storageKey(toks, key))
}

func (t *tagged[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	if !t.m.enabled {
		return true
	}
	toks, err := t.m.ensureTokens(ctx, t.tags)
	if err != nil {
		t.m.log.Warn("tagged set failed; token unavailable", Fields{"key": key, "err": err.Error()})
		return false
	}
	return t.m.setAt(ctx, t.storageKey(toks, key), value, ttl)
}

func (t *tagged[V]) Delete(ctx context.Context, key string) bool {
	if !t.m.enabled {
		return true
	}
	toks, ok := t.m.currentTokens(ctx, t.tags)
	if !ok {
		// nothing reachable to delete
		return true
	}
	sk := t.storageKey(toks, key)
	if err := t.m.store.Delete(ctx, sk); err != nil {
		t.m.hooks.BackendUnavailable("delete", sk, err)
		t.m.log.Warn("tagged delete failed", Fields{"key": sk, "err": err.Error()})
		return false
	}
	t.m.deleteDone(1)
	return true
}

func (t *tagged[V]) Remember(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := t.Get(ctx, key); ok {
		return v, nil
	}
	v, err := produce(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	t.Set(ctx, key, v, ttl)
	return v, nil
}

func (t *tagged[V]) Flush(ctx context.Context) error {
	return t.m.FlushTags(ctx, t.tags...)
}

func (t *tagged[V]) storageKey(tokens []string, logicalKey string) string {
	return keys.Join(t.m.prefix, keys.Tagged(t.tags, tokens, logicalKey))
}

// currentTokens reads the version token of each tag. ok=false when any token
// is absent or the backend failed; callers treat both as a guaranteed miss.
func (m *manager[V]) currentTokens(ctx context.Context, tags []string) ([]string, bool) {
	tks := tokenKeys(m.prefix, tags)
	got, err := m.store.GetMulti(ctx, tks)
	if err != nil {
		m.hooks.BackendUnavailable("token_read", "", err)
		m.log.Warn("tag token read failed; treating as miss", Fields{"tags": len(tags), "err": err.Error()})
		return nil, false
	}
	out := make([]string, len(tags))
	for i, tk := range tks {
		v, ok := got[tk]
		if !ok {
			return nil, false
		}
		out[i] = string(v)
	}
	return out, true
}

// ensureTokens reads tokens and lazily creates missing ones. Tokens never
// expire. Two concurrent writers may both create a token for the same new
// tag; the loser's data entry becomes orphaned, which wastes a write but
// never resurrects flushed data.
func (m *manager[V]) ensureTokens(ctx context.Context, tags []string) ([]string, error) {
	tks := tokenKeys(m.prefix, tags)
	got, err := m.store.GetMulti(ctx, tks)
	if err != nil {
		m.hooks.BackendUnavailable("token_read", "", err)
		return nil, err
	}
	out := make([]string, len(tags))
	for i, tk := range tks {
		if v, ok := got[tk]; ok {
			out[i] = string(v)
			continue
		}
		token := uuid.NewString()
		ok, serr := m.store.Set(ctx, tk, []byte(token), 0)
		if serr != nil {
			m.hooks.BackendUnavailable("set", tk, serr)
			return nil, serr
		}
		if !ok {
			return nil, fmt.Errorf("tagcache: store rejected token write for tag %q", tags[i])
		}
		m.hooks.TagTokenRotated(tags[i])
		out[i] = token
	}
	return out, nil
}

// rotateToken generates a fresh, globally distinct token for tag and
// overwrites the stored one. That is the entire flush: entries keyed against
// the old token are left behind unreachable.
func (m *manager[V]) rotateToken(ctx context.Context, tag string) error {
	tk := keys.Join(m.prefix, keys.TokenKey(tag))
	token := uuid.NewString()
	ok, err := m.store.Set(ctx, tk, []byte(token), 0)
	if err != nil {
		m.hooks.TagTokenWriteFailed(tag, err)
		return err
	}
	if !ok {
		err := fmt.Errorf("tagcache: store rejected token write for tag %q", tag)
		m.hooks.TagTokenWriteFailed(tag, err)
		return err
	}
	m.hooks.TagTokenRotated(tag)
	m.metrics.IncCounter(MetricFlushes, 1)
	m.log.Debug("tag token rotated", Fields{"tag": tag})
	return nil
}

func tokenKeys(prefix string, tags []string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = keys.Join(prefix, keys.TokenKey(tag))
	}
	return out
}
