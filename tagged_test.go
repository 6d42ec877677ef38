package tagcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ==============================
// Tag flush invalidation
// ==============================

func TestTagFlushInvalidates(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "app", newMemStore(), nil)
	defer c.Close(ctx)

	users := c.Tags("users")
	if !users.Set(ctx, "user:1", user{ID: "1", Name: "Alice"}, time.Minute) {
		t.Fatalf("tagged Set failed")
	}
	if got, ok := users.Get(ctx, "user:1"); !ok || got.Name != "Alice" {
		t.Fatalf("tagged Get before flush: ok=%v got=%+v", ok, got)
	}

	if err := users.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok := users.Get(ctx, "user:1"); ok {
		t.Fatalf("entry reachable after flush")
	}
}

func TestTagIndependence(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "app", newMemStore(), nil)
	defer c.Close(ctx)

	c.Tags("users").Set(ctx, "u1", user{ID: "u1"}, 0)
	c.Tags("admins").Set(ctx, "a1", user{ID: "a1"}, 0)

	if err := c.FlushTags(ctx, "admins"); err != nil {
		t.Fatalf("FlushTags: %v", err)
	}

	if _, ok := c.Tags("admins").Get(ctx, "a1"); ok {
		t.Fatalf("flushed tag still readable")
	}
	if got, ok := c.Tags("users").Get(ctx, "u1"); !ok || got.ID != "u1" {
		t.Fatalf("unrelated tag was invalidated: ok=%v got=%+v", ok, got)
	}
}

func TestMultiTagFlushSensitivity(t *testing.T) {
	ctx := context.Background()

	for _, flushTag := range []string{"users", "admins"} {
		c := newTestCache(t, "app", newMemStore(), nil)

		both := c.Tags("users", "admins")
		both.Set(ctx, "x", user{ID: "x"}, 0)
		if _, ok := both.Get(ctx, "x"); !ok {
			t.Fatalf("setup read failed")
		}

		if err := c.FlushTags(ctx, flushTag); err != nil {
			t.Fatalf("FlushTags(%q): %v", flushTag, err)
		}
		if _, ok := both.Get(ctx, "x"); ok {
			t.Fatalf("entry survived flush of %q", flushTag)
		}
		c.Close(ctx)
	}
}

func TestRepeatedFlushIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "app", newMemStore(), nil)
	defer c.Close(ctx)

	tagged := c.Tags("t")
	tagged.Set(ctx, "k", user{ID: "k"}, 0)

	if err := c.FlushTags(ctx, "t"); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	if err := c.FlushTags(ctx, "t"); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if _, ok := tagged.Get(ctx, "k"); ok {
		t.Fatalf("entry reachable after double flush")
	}
}

// ==============================
// Token semantics
// ==============================

func TestMissingTokenIsGuaranteedMissAndNotCreated(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	c := newTestCache(t, "app", ms, nil)
	defer c.Close(ctx)

	if _, ok := c.Tags("ghost").Get(ctx, "k"); ok {
		t.Fatalf("unwritten tag must be a guaranteed miss")
	}
	// a read must not create the token
	if _, exists := ms.raw("app:tagversion:ghost"); exists {
		t.Fatalf("Get created a tag token")
	}
}

func TestSetCreatesNeverExpiringToken(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	c := newTestCache(t, "app", ms, nil)
	defer c.Close(ctx)

	c.Tags("users").Set(ctx, "u1", user{ID: "u1"}, time.Second)

	tok, exists := ms.raw("app:tagversion:users")
	if !exists || len(tok) == 0 {
		t.Fatalf("token not persisted")
	}
	// data entry expires; the token must not
	ms.advance(10000 * time.Second)
	if _, ok, _ := ms.Get(ctx, "app:tagversion:users"); !ok {
		t.Fatalf("token expired")
	}
}

func TestFlushRotatesTokenWithoutDeletingData(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	c := newTestCache(t, "app", ms, nil)
	defer c.Close(ctx)

	c.Tags("users").Set(ctx, "u1", user{ID: "u1"}, 0)
	before, _ := ms.raw("app:tagversion:users")
	entries := ms.len()

	if err := c.FlushTags(ctx, "users"); err != nil {
		t.Fatalf("FlushTags: %v", err)
	}

	after, _ := ms.raw("app:tagversion:users")
	if string(before) == string(after) {
		t.Fatalf("token not rotated")
	}
	// flush writes one token, deletes nothing: old blob stays as garbage
	if ms.len() != entries {
		t.Fatalf("flush changed entry count: before=%d after=%d", entries, ms.len())
	}
}

func TestTagOrderAndDuplicatesDoNotMatter(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "app", newMemStore(), nil)
	defer c.Close(ctx)

	c.Tags("users", "admins").Set(ctx, "x", user{ID: "x"}, 0)

	if got, ok := c.Tags("admins", "users").Get(ctx, "x"); !ok || got.ID != "x" {
		t.Fatalf("tag order changed the physical key: ok=%v", ok)
	}
	if got, ok := c.Tags("users", "admins", "users").Get(ctx, "x"); !ok || got.ID != "x" {
		t.Fatalf("duplicate tags changed the physical key: ok=%v", ok)
	}
}

func TestSameKeyDifferentTagSetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "app", newMemStore(), nil)
	defer c.Close(ctx)

	c.Tags("a").Set(ctx, "k", user{ID: "in-a"}, 0)
	c.Tags("b").Set(ctx, "k", user{ID: "in-b"}, 0)

	if got, _ := c.Tags("a").Get(ctx, "k"); got.ID != "in-a" {
		t.Fatalf("tag a entry clobbered: %+v", got)
	}
	if got, _ := c.Tags("b").Get(ctx, "k"); got.ID != "in-b" {
		t.Fatalf("tag b entry clobbered: %+v", got)
	}
}

// ==============================
// Tagged delete / remember
// ==============================

func TestTaggedDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "app", newMemStore(), nil)
	defer c.Close(ctx)

	tagged := c.Tags("users")
	tagged.Set(ctx, "u1", user{ID: "u1"}, 0)
	if !tagged.Delete(ctx, "u1") {
		t.Fatalf("tagged Delete failed")
	}
	if _, ok := tagged.Get(ctx, "u1"); ok {
		t.Fatalf("entry survived tagged Delete")
	}
	// deleting under a tag that has no token is a no-op success
	if !c.Tags("ghost").Delete(ctx, "k") {
		t.Fatalf("delete under unknown tag should succeed")
	}
}

func TestTaggedRemember(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "app", newMemStore(), nil)
	defer c.Close(ctx)

	tagged := c.Tags("reports")
	calls := 0
	produce := func(context.Context) (user, error) {
		calls++
		return user{ID: "r1"}, nil
	}

	if _, err := tagged.Remember(ctx, "r1", 0, produce); err != nil {
		t.Fatal(err)
	}
	if _, err := tagged.Remember(ctx, "r1", 0, produce); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("produce ran %d times before flush, want 1", calls)
	}

	// flush forces recompute
	if err := tagged.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := tagged.Remember(ctx, "r1", 0, produce); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("produce ran %d times after flush, want 2", calls)
	}
}

// ==============================
// Failure paths
// ==============================

func TestFlushFailureReportsFlushError(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	c := newTestCache(t, "app", ms, nil)
	defer c.Close(ctx)

	c.Tags("users").Set(ctx, "u1", user{ID: "u1"}, 0)
	ms.failSet = errors.New("backend down")

	err := c.FlushTags(ctx, "users")
	if err == nil {
		t.Fatalf("expected flush error")
	}
	var fe *FlushError
	if !errors.As(err, &fe) || fe.Tag != "users" {
		t.Fatalf("expected FlushError for tag users, got %v", err)
	}

	// rotation failed: entries stay reachable, which the error warns about
	ms.failSet = nil
	if _, ok := c.Tags("users").Get(ctx, "u1"); !ok {
		t.Fatalf("entry should still be reachable after failed flush")
	}
}

func TestTaggedSetFailsWhenTokenUnwritable(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	c := newTestCache(t, "app", ms, nil)
	defer c.Close(ctx)

	ms.failSet = errors.New("backend down")
	if c.Tags("users").Set(ctx, "u1", user{ID: "u1"}, 0) {
		t.Fatalf("tagged Set must fail when the token cannot be persisted")
	}
}

func TestTokenReadFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	c := newTestCache(t, "app", ms, nil)
	defer c.Close(ctx)

	c.Tags("users").Set(ctx, "u1", user{ID: "u1"}, 0)
	ms.failGet = errors.New("backend down")

	if _, ok := c.Tags("users").Get(ctx, "u1"); ok {
		t.Fatalf("token read failure must degrade to a miss")
	}
}

// ==============================
// Untagged data
// ==============================

func TestFlushLeavesUntaggedDataAlone(t *testing.T) {
	ctx := context.Background()
	ms := newMemStore()
	c := newTestCache(t, "app", ms, nil)
	defer c.Close(ctx)

	c.Tags("users").Set(ctx, "user:1", user{Name: "Alice"}, 60*time.Second)
	c.Set(ctx, "config:theme", user{Name: "dark"}, Forever)

	if err := c.FlushTags(ctx, "users"); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Tags("users").Get(ctx, "user:1"); ok {
		t.Fatalf("tagged entry survived flush")
	}
	ms.advance(10000 * time.Second)
	if got, ok := c.Get(ctx, "config:theme"); !ok || got.Name != "dark" {
		t.Fatalf("untagged Forever entry lost: ok=%v got=%+v", ok, got)
	}
}
