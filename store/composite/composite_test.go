package composite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/store/memory"
)

// faulty wraps a store and fails every operation once armed.
type faulty struct {
	store.Store
	err error
}

func (f *faulty) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.Store.Get(ctx, key)
}

func (f *faulty) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *faulty) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.Store.GetMulti(ctx, keys)
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Stores: []store.Store{memory.New(memory.Config{})}, Policy: Fallback}); err == nil {
		t.Fatalf("expected error with a single store")
	}
	if _, err := New(Config{
		Stores: []store.Store{memory.New(memory.Config{}), memory.New(memory.Config{})},
		Policy: Policy("bogus"),
	}); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestFallbackWritesPrimaryOnly(t *testing.T) {
	ctx := context.Background()
	primary := memory.New(memory.Config{})
	secondary := memory.New(memory.Config{})
	s, err := New(Config{Stores: []store.Store{primary, secondary}, Policy: Fallback})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	if ok, err := s.Set(ctx, "k", []byte("v"), 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := primary.Get(ctx, "k"); !ok {
		t.Fatalf("primary missing entry")
	}
	if _, ok, _ := secondary.Get(ctx, "k"); ok {
		t.Fatalf("fallback must not write the secondary")
	}
}

func TestFallbackReadsNextLayerOnError(t *testing.T) {
	ctx := context.Background()
	primary := &faulty{Store: memory.New(memory.Config{})}
	secondary := memory.New(memory.Config{})
	if _, err := secondary.Set(ctx, "k", []byte("from-secondary"), 0); err != nil {
		t.Fatal(err)
	}

	s, err := New(Config{Stores: []store.Store{primary, secondary}, Policy: Fallback})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	primary.err = errors.New("connection refused")
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(v) != "from-secondary" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestReplicateMirrorsWrites(t *testing.T) {
	ctx := context.Background()
	primary := memory.New(memory.Config{})
	secondary := memory.New(memory.Config{})
	s, err := New(Config{Stores: []store.Store{primary, secondary}, Policy: Replicate})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	if ok, err := s.Set(ctx, "k", []byte("v"), 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	for name, st := range map[string]store.Store{"primary": primary, "secondary": secondary} {
		if v, ok, _ := st.Get(ctx, "k"); !ok || string(v) != "v" {
			t.Fatalf("%s missing replicated entry", name)
		}
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := secondary.Get(ctx, "k"); ok {
		t.Fatalf("delete not replicated")
	}
}

func TestReplicateSwallowsReplicaFailure(t *testing.T) {
	ctx := context.Background()
	primary := memory.New(memory.Config{})
	replica := &faulty{Store: memory.New(memory.Config{}), err: errors.New("disk full")}
	s, err := New(Config{Stores: []store.Store{primary, replica}, Policy: Replicate})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	if ok, err := s.Set(ctx, "k", []byte("v"), 0); err != nil || !ok {
		t.Fatalf("replica failure must not fail the write: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := primary.Get(ctx, "k"); !ok {
		t.Fatalf("primary missing entry")
	}
}

func TestGetMultiCascades(t *testing.T) {
	ctx := context.Background()
	primary := memory.New(memory.Config{})
	secondary := memory.New(memory.Config{})
	primary.Set(ctx, "a", []byte("1"), 0)
	secondary.Set(ctx, "b", []byte("2"), 0)

	s, err := New(Config{Stores: []store.Store{primary, secondary}, Policy: Fallback})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	got, err := s.GetMulti(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Fatalf("GetMulti: %v", got)
	}
}

func TestIncrementDelegatesToCapablePrimary(t *testing.T) {
	ctx := context.Background()
	primary := memory.New(memory.Config{})
	secondary := memory.New(memory.Config{})
	s, err := New(Config{Stores: []store.Store{primary, secondary}, Policy: Fallback})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	// memory store supports atomic increments natively
	if v, err := s.Increment(ctx, "n", 3); err != nil || v != 3 {
		t.Fatalf("Increment: v=%d err=%v", v, err)
	}
	if _, ok, _ := secondary.Get(ctx, "n"); ok {
		t.Fatalf("counter must live on the primary only")
	}
}

// plain hides any capability interfaces of the wrapped store.
type plain struct{ store.Store }

func TestIncrementReportsErrNoIncrement(t *testing.T) {
	ctx := context.Background()
	s, err := New(Config{
		Stores: []store.Store{plain{memory.New(memory.Config{})}, memory.New(memory.Config{})},
		Policy: Fallback,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	if _, err := s.Increment(ctx, "n", 1); !errors.Is(err, store.ErrNoIncrement) {
		t.Fatalf("err=%v, want store.ErrNoIncrement", err)
	}
}

func TestCacheIncrementEmulatesOverIncapablePrimary(t *testing.T) {
	ctx := context.Background()
	primary := plain{memory.New(memory.Config{})}
	s, err := New(Config{
		Stores: []store.Store{primary, memory.New(memory.Config{})},
		Policy: Fallback,
	})
	if err != nil {
		t.Fatal(err)
	}

	c, err := tagcache.New[string](tagcache.Options[string]{Prefix: "app", Store: s})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(ctx)

	// the cache layer must detect the declined capability and emulate
	if v, err := c.Increment(ctx, "n", 5); err != nil || v != 5 {
		t.Fatalf("Increment over composite: v=%d err=%v", v, err)
	}
	if v, err := c.Decrement(ctx, "n", 2); err != nil || v != 3 {
		t.Fatalf("Decrement over composite: v=%d err=%v", v, err)
	}
	if v, ok, _ := primary.Get(ctx, "app:n"); !ok || string(v) != "3" {
		t.Fatalf("counter not on primary: ok=%v v=%q", ok, v)
	}
}
