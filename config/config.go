// Package config selects and constructs a cache backend from declarative
// configuration. Unknown backend names or composite policies fail fast at
// construction: a config mistake should stop startup, unlike runtime backend
// trouble which the cache degrades around.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/store"
	storebigcache "github.com/unkn0wn-root/tagcache/store/bigcache"
	storecomposite "github.com/unkn0wn-root/tagcache/store/composite"
	storefile "github.com/unkn0wn-root/tagcache/store/file"
	storelru "github.com/unkn0wn-root/tagcache/store/lru"
	storememory "github.com/unkn0wn-root/tagcache/store/memory"
	storeredis "github.com/unkn0wn-root/tagcache/store/redis"
	storeristretto "github.com/unkn0wn-root/tagcache/store/ristretto"
	storetable "github.com/unkn0wn-root/tagcache/store/table"
)

// Backend names a store implementation.
type Backend string

const (
	Memory    Backend = "memory"
	File      Backend = "file"
	Redis     Backend = "redis"
	BigCache  Backend = "bigcache"
	Ristretto Backend = "ristretto"
	LRU       Backend = "lru"
	Table     Backend = "table"
	Composite Backend = "composite"
)

// CompositePolicy mirrors composite.Policy for declarative configs.
type CompositePolicy string

const (
	Fallback  CompositePolicy = "fallback"
	Replicate CompositePolicy = "replicate"
)

// Config describes one backend. For Composite, Layers holds the underlying
// backends in priority order and CompositePolicy selects the combination
// strategy; the other fields apply to the backend they name.
type Config struct {
	Backend    Backend
	KeyPrefix  string        // cache namespace, consumed by tagcache.Options
	DefaultTTL time.Duration // consumed by tagcache.Options; also the lru cache-wide TTL

	// file
	Dir string
	// redis
	Addr     string
	Password string
	DB       int
	// table
	DSN string
	// memory
	CleanupInterval time.Duration
	// lru / ristretto sizing
	MaxEntries int
	MaxCostMB  int

	// composite
	CompositePolicy CompositePolicy
	Layers          []Config
	Logger          tagcache.Logger
}

// Open builds the store described by cfg. It is the single place backend
// names are interpreted; everything downstream works with store.Store.
func Open(cfg Config) (store.Store, error) {
	switch cfg.Backend {
	case Memory:
		return storememory.New(storememory.Config{CleanupInterval: cfg.CleanupInterval}), nil

	case File:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("config: file backend requires Dir")
		}
		return storefile.New(storefile.Config{Dir: cfg.Dir})

	case Redis:
		if cfg.Addr == "" {
			return nil, fmt.Errorf("config: redis backend requires Addr")
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return storeredis.New(storeredis.Config{Client: client, CloseClient: true})

	case BigCache:
		life := cfg.DefaultTTL
		if life <= 0 {
			life = 10 * time.Minute
		}
		return storebigcache.New(storebigcache.Config{
			LifeWindow:         life,
			HardMaxCacheSizeMB: cfg.MaxCostMB,
		})

	case Ristretto:
		maxCost := int64(cfg.MaxCostMB) << 20
		if maxCost <= 0 {
			maxCost = 64 << 20
		}
		return storeristretto.New(storeristretto.Config{
			NumCounters: 1e6,
			MaxCost:     maxCost,
			BufferItems: 64,
		})

	case LRU:
		maxEntries := cfg.MaxEntries
		if maxEntries <= 0 {
			maxEntries = 10000
		}
		return storelru.New(storelru.Config{MaxEntries: maxEntries, TTL: cfg.DefaultTTL})

	case Table:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("config: table backend requires DSN")
		}
		return storetable.New(storetable.Config{DSN: cfg.DSN})

	case Composite:
		var policy storecomposite.Policy
		switch cfg.CompositePolicy {
		case Fallback:
			policy = storecomposite.Fallback
		case Replicate:
			policy = storecomposite.Replicate
		default:
			return nil, fmt.Errorf("config: unknown composite policy %q", cfg.CompositePolicy)
		}
		if len(cfg.Layers) < 2 {
			return nil, fmt.Errorf("config: composite backend requires at least two layers")
		}
		layers := make([]store.Store, 0, len(cfg.Layers))
		for i, lc := range cfg.Layers {
			if lc.Backend == Composite {
				return nil, fmt.Errorf("config: composite layers cannot nest composite")
			}
			st, err := Open(lc)
			if err != nil {
				return nil, fmt.Errorf("config: composite layer %d: %w", i, err)
			}
			layers = append(layers, st)
		}
		return storecomposite.New(storecomposite.Config{
			Stores: layers,
			Policy: policy,
			Logger: cfg.Logger,
		})

	default:
		return nil, fmt.Errorf("config: unknown backend %q", cfg.Backend)
	}
}

// FromEnv reads a Config from TAGCACHE_* environment variables, loading a
// .env file first when one exists (missing .env is not an error).
//
// Recognized variables: TAGCACHE_BACKEND, TAGCACHE_KEY_PREFIX,
// TAGCACHE_DEFAULT_TTL (Go duration), TAGCACHE_DIR, TAGCACHE_REDIS_ADDR,
// TAGCACHE_REDIS_PASSWORD, TAGCACHE_DSN. Composite setups need code, not env.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Backend:   Backend(os.Getenv("TAGCACHE_BACKEND")),
		KeyPrefix: os.Getenv("TAGCACHE_KEY_PREFIX"),
		Dir:       os.Getenv("TAGCACHE_DIR"),
		Addr:      os.Getenv("TAGCACHE_REDIS_ADDR"),
		Password:  os.Getenv("TAGCACHE_REDIS_PASSWORD"),
		DSN:       os.Getenv("TAGCACHE_DSN"),
	}
	if cfg.Backend == "" {
		cfg.Backend = Memory
	}
	if cfg.Backend == Composite {
		return Config{}, fmt.Errorf("config: composite backend cannot be configured from env")
	}
	if raw := os.Getenv("TAGCACHE_DEFAULT_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid TAGCACHE_DEFAULT_TTL %q: %w", raw, err)
		}
		cfg.DefaultTTL = ttl
	}
	return cfg, nil
}
