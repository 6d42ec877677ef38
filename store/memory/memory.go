// Package memory provides an in-process map-backed Store. It is the
// reference implementation of the store contract and the default backend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/tagcache/store"
)

// now is a small indirection to allow test stubbing.
var now = time.Now

type item struct {
	value     []byte
	expiresAt time.Time // zero => never expires
}

func (it item) expired(at time.Time) bool {
	return !it.expiresAt.IsZero() && at.After(it.expiresAt)
}

// Store keeps entries in a mutex-guarded map with per-entry TTL. Expired
// entries are removed lazily on read; an optional janitor sweeps them
// periodically so long-idle caches do not grow without bound.
type Store struct {
	mu    sync.RWMutex
	items map[string]item

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.Incrementer = (*Store)(nil)
)

// Config tunes the memory store. The zero value disables the janitor.
type Config struct {
	// CleanupInterval is how often expired entries are swept.
	// 0 disables the background janitor (cleanup stays lazy).
	CleanupInterval time.Duration
}

func New(cfg Config) *Store {
	s := &Store{items: make(map[string]item)}
	if cfg.CleanupInterval > 0 {
		s.ticker = time.NewTicker(cfg.CleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.purgeExpired()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if it.expired(now()) {
		// lazy eviction
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur.expired(now()) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	// copy so callers cannot mutate stored bytes
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	v := make([]byte, len(value))
	copy(v, value)

	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = item{value: v, expiresAt: exp}
	s.mu.Unlock()
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]item)
	s.mu.Unlock()
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// GetMulti acquires the read lock once for all requested keys.
func (s *Store) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	at := now()
	out := make(map[string][]byte, len(keys))

	s.mu.RLock()
	for _, k := range keys {
		if it, ok := s.items[k]; ok && !it.expired(at) {
			v := make([]byte, len(it.value))
			copy(v, it.value)
			out[k] = v
		}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) SetMulti(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}
	s.mu.Lock()
	for k, value := range items {
		v := make([]byte, len(value))
		copy(v, value)
		s.items[k] = item{value: v, expiresAt: exp}
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteMulti(_ context.Context, keys []string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.items, k)
	}
	s.mu.Unlock()
	return nil
}

// Increment implements store.Incrementer under the write lock, so concurrent
// increments on the same key never lose updates.
func (s *Store) Increment(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur int64
	if it, ok := s.items[key]; ok && !it.expired(now()) {
		v, err := store.ParseCounter(it.value)
		if err != nil {
			return 0, err
		}
		cur = v
	}
	cur += delta
	s.items[key] = item{value: store.FormatCounter(cur)}
	return cur, nil
}

func (s *Store) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}

func (s *Store) purgeExpired() {
	at := now()
	s.mu.Lock()
	for k, it := range s.items {
		if it.expired(at) {
			delete(s.items, k)
		}
	}
	s.mu.Unlock()
}

// Len reports the number of stored entries, expired or not. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
