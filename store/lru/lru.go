// Package lru provides a size-bounded in-memory Store backed by
// hashicorp's expirable LRU. Expiry is cache-wide (one TTL for every entry,
// fixed at construction); the per-call TTL is ignored, like bigcache.
package lru

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/unkn0wn-root/tagcache/store"
)

type Store struct {
	c *expirable.LRU[string, []byte]
}

var _ store.Store = (*Store)(nil)

type Config struct {
	// MaxEntries bounds the cache; the least recently used entry is evicted
	// when full.
	MaxEntries int
	// TTL applies to every entry. 0 disables expiry.
	TTL time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.MaxEntries <= 0 {
		return nil, errors.New("lru store: MaxEntries must be positive")
	}
	return &Store{c: expirable.NewLRU[string, []byte](cfg.MaxEntries, nil, cfg.TTL)}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	s.c.Add(key, value)
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Remove(key)
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.c.Purge()
	return nil
}

func (s *Store) Has(_ context.Context, key string) (bool, error) {
	// Contains skips the expiry check; Get is the only lookup that
	// respects it, so an expired-but-unpruned entry stays invisible.
	_, ok := s.c.Get(key)
	return ok, nil
}

func (s *Store) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok, _ := s.Get(ctx, k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Store) SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		if _, err := s.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteMulti(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
