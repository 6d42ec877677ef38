package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestRoundTripSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := s.Set(ctx, "user:1", []byte(`{"name":"Alice"}`), time.Hour); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	_ = s.Close(ctx)

	// a fresh store over the same dir still sees the entry
	s2, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := s2.Get(ctx, "user:1")
	if err != nil || !ok || !bytes.Equal(got, []byte(`{"name":"Alice"}`)) {
		t.Fatalf("Get after reopen: ok=%v err=%v got=%q", ok, err, got)
	}
}

func TestExpiredEntryDeletedOnRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expired entry must be a miss")
	}
	if _, err := os.Stat(s.path("k")); !os.IsNotExist(err) {
		t.Fatalf("expired file should have been removed lazily")
	}
}

func TestCorruptFileSelfHeals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.path("k"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("corrupt entry must read as miss without error: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(s.path("k")); !os.IsNotExist(err) {
		t.Fatalf("corrupt file should have been removed")
	}
}

func TestClearRemovesOnlyEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _ = s.Set(ctx, "a", []byte("1"), 0)
	_, _ = s.Set(ctx, "b", []byte("2"), 0)

	// unrelated file in the dir must survive Clear
	foreign := filepath.Join(s.dir, "keep.txt")
	if err := os.WriteFile(foreign, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if has, _ := s.Has(ctx, "a"); has {
		t.Fatalf("Clear left entry behind")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("Clear removed unrelated file: %v", err)
	}
}

func TestDeleteMissingIsNoError(t *testing.T) {
	if err := newTestStore(t).Delete(context.Background(), "nope"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}
