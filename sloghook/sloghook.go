// Package sloghook logs tagcache hook events through slog, with sampling
// for the events that can flood under backend trouble.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CorruptEvery     uint64
	UnavailableEvery uint64
	EmulatedEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	corruptCtr     atomic.Uint64
	unavailableCtr atomic.Uint64
	emulatedCtr    atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EntryCorrupt(storageKey string) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Debug("tagcache.entry_corrupt",
		"key", h.redact(storageKey))
}

func (h *Hooks) BackendUnavailable(op, storageKey string, err error) {
	if h.l == nil || !sample(h.opts.UnavailableEvery, &h.unavailableCtr) {
		return
	}
	h.l.Warn("tagcache.backend_unavailable",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) TagTokenRotated(tag string) {
	if h.l == nil {
		return
	}
	h.l.Debug("tagcache.tag_token_rotated",
		"tag", tag)
}

func (h *Hooks) TagTokenWriteFailed(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.tag_token_write_failed",
		"tag", tag,
		"err", err)
}

func (h *Hooks) IncrementEmulated(key string) {
	if h.l == nil || !sample(h.opts.EmulatedEvery, &h.emulatedCtr) {
		return
	}
	h.l.Debug("tagcache.increment_emulated",
		"key", h.redact(key))
}
