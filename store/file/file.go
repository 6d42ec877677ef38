// Package file provides a filesystem-backed Store. Each entry lives in its
// own file named by the hash of its key; the payload is framed with its
// absolute expiry (internal/entry) so TTLs survive process restarts.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/unkn0wn-root/tagcache/internal/entry"
	"github.com/unkn0wn-root/tagcache/store"
)

const entryExt = ".cache"

type Store struct {
	dir  string
	lock *flock.Flock
}

var _ store.Store = (*Store)(nil)

type Config struct {
	// Dir is the directory entries are written to. Created if absent.
	Dir string
}

// New creates the cache directory and its cross-process write lock.
// Concurrent in-process use is safe; the flock serializes mutating
// operations against other processes sharing the same directory.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("file store: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create dir: %w", err)
	}
	return &Store{
		dir:  cfg.Dir,
		lock: flock.New(filepath.Join(cfg.Dir, ".lock")),
	}, nil
}

func (s *Store) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+entryExt)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	p := s.path(key)
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	expiresAt, payload, err := entry.Decode(raw)
	if err != nil {
		// self-heal corrupt file
		_ = os.Remove(p)
		return nil, false, nil
	}
	if entry.Expired(expiresAt, time.Now()) {
		// lazy eviction
		_ = os.Remove(p)
		return nil, false, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true, nil
}

// Set writes to a temp file in the same directory and renames it into place,
// so readers never observe a partially written entry.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.lock.Lock(); err != nil {
		return false, err
	}
	defer func() { _ = s.lock.Unlock() }()

	raw := entry.Encode(entry.ExpiryFromTTL(time.Now(), ttl), value)
	tmp, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return false, err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return false, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return false, err
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) Clear(_ context.Context) error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	ents, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range ents {
		if e.IsDir() || filepath.Ext(e.Name()) != entryExt {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
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
