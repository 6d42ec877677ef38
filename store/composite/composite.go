// Package composite combines several stores behind one Store.
//
// Two policies:
//   - Fallback: reads try each store in order and return the first hit;
//     writes and deletes go to the primary (first) store only.
//   - Replicate: writes and deletes go to every store; a failure on a
//     non-primary store is logged and swallowed (best effort, not
//     transactional); reads return the first hit from a store that answered.
//
// No cross-store consistency is guaranteed beyond "eventually mirrored,
// best effort".
package composite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/store"
)

// Policy selects how the underlying stores are combined.
type Policy string

const (
	Fallback  Policy = "fallback"
	Replicate Policy = "replicate"
)

type Store struct {
	stores []store.Store
	policy Policy
	log    tagcache.Logger
}

var _ store.Store = (*Store)(nil)

type Config struct {
	// Stores in priority order; the first is the primary. At least two.
	Stores []store.Store
	Policy Policy
	Logger tagcache.Logger // nil => NopLogger
}

func New(cfg Config) (*Store, error) {
	if len(cfg.Stores) < 2 {
		return nil, errors.New("composite store: at least two stores required")
	}
	switch cfg.Policy {
	case Fallback, Replicate:
	default:
		return nil, fmt.Errorf("composite store: unknown policy %q", cfg.Policy)
	}
	log := cfg.Logger
	if log == nil {
		log = tagcache.NopLogger{}
	}
	return &Store{stores: cfg.Stores, policy: cfg.Policy, log: log}, nil
}

func (s *Store) primary() store.Store { return s.stores[0] }

// Get tries each store in order under both policies; an erroring store is
// skipped so a dead primary degrades to the next layer instead of a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for i, st := range s.stores {
		v, ok, err := st.Get(ctx, key)
		if err != nil {
			s.log.Warn("composite get failed on layer", tagcache.Fields{"layer": i, "key": key, "err": err.Error()})
			continue
		}
		if ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.policy == Fallback {
		return s.primary().Set(ctx, key, value, ttl)
	}
	ok, err := s.primary().Set(ctx, key, value, ttl)
	for i, st := range s.stores[1:] {
		if _, rerr := st.Set(ctx, key, value, ttl); rerr != nil {
			s.log.Warn("composite replica set failed", tagcache.Fields{"layer": i + 1, "key": key, "err": rerr.Error()})
		}
	}
	return ok, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.policy == Fallback {
		return s.primary().Delete(ctx, key)
	}
	err := s.primary().Delete(ctx, key)
	for i, st := range s.stores[1:] {
		if rerr := st.Delete(ctx, key); rerr != nil {
			s.log.Warn("composite replica delete failed", tagcache.Fields{"layer": i + 1, "key": key, "err": rerr.Error()})
		}
	}
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	if s.policy == Fallback {
		return s.primary().Clear(ctx)
	}
	err := s.primary().Clear(ctx)
	for i, st := range s.stores[1:] {
		if rerr := st.Clear(ctx); rerr != nil {
			s.log.Warn("composite replica clear failed", tagcache.Fields{"layer": i + 1, "err": rerr.Error()})
		}
	}
	return err
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	remaining := keys
	for i, st := range s.stores {
		if len(remaining) == 0 {
			break
		}
		got, err := st.GetMulti(ctx, remaining)
		if err != nil {
			s.log.Warn("composite getmulti failed on layer", tagcache.Fields{"layer": i, "err": err.Error()})
			continue
		}
		next := remaining[:0:0]
		for _, k := range remaining {
			if v, ok := got[k]; ok {
				out[k] = v
			} else {
				next = append(next, k)
			}
		}
		remaining = next
	}
	return out, nil
}

func (s *Store) SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if s.policy == Fallback {
		return s.primary().SetMulti(ctx, items, ttl)
	}
	err := s.primary().SetMulti(ctx, items, ttl)
	for i, st := range s.stores[1:] {
		if rerr := st.SetMulti(ctx, items, ttl); rerr != nil {
			s.log.Warn("composite replica setmulti failed", tagcache.Fields{"layer": i + 1, "err": rerr.Error()})
		}
	}
	return err
}

func (s *Store) DeleteMulti(ctx context.Context, keys []string) error {
	if s.policy == Fallback {
		return s.primary().DeleteMulti(ctx, keys)
	}
	err := s.primary().DeleteMulti(ctx, keys)
	for i, st := range s.stores[1:] {
		if rerr := st.DeleteMulti(ctx, keys); rerr != nil {
			s.log.Warn("composite replica deletemulti failed", tagcache.Fields{"layer": i + 1, "err": rerr.Error()})
		}
	}
	return err
}

// Increment delegates to the primary when it supports atomic increments.
// Replicas are not incremented; counters live on the primary only. A primary
// without native increments reports store.ErrNoIncrement so the cache layer
// can fall back to its read-modify-write emulation.
func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	inc, ok := s.primary().(store.Incrementer)
	if !ok {
		return 0, fmt.Errorf("composite store: primary: %w", store.ErrNoIncrement)
	}
	return inc.Increment(ctx, key, delta)
}

// Close closes every layer and returns the first error.
func (s *Store) Close(ctx context.Context) error {
	var firstErr error
	for _, st := range s.stores {
		if err := st.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
