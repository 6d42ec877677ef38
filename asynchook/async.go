// Package asynchook decouples hook callbacks from the cache hot path.
//
// usage:
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{
//	    CorruptEvery: 10, // sample logs: ~every 10th corrupt entry
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := tagcache.New[User](tagcache.Options[User]{
//	    Prefix: "app:prod:user",
//	    Store:  st,
//	    Hooks:  hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped when the queue is full; hooks are observability, never
// control flow.
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	inner tagcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(inner tagcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) EntryCorrupt(k string)      { h.try(func() { h.inner.EntryCorrupt(k) }) }
func (h *Hooks) TagTokenRotated(tag string) { h.try(func() { h.inner.TagTokenRotated(tag) }) }
func (h *Hooks) IncrementEmulated(k string) { h.try(func() { h.inner.IncrementEmulated(k) }) }
func (h *Hooks) BackendUnavailable(op, k string, err error) {
	h.try(func() { h.inner.BackendUnavailable(op, k, err) })
}
func (h *Hooks) TagTokenWriteFailed(tag string, err error) {
	h.try(func() { h.inner.TagTokenWriteFailed(tag, err) })
}
