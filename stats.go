package tagcache

import "sync/atomic"

// stats holds the process-local counters. All methods are safe for
// concurrent use; counters are plain atomics, no locks on the hot path.
type stats struct {
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters. HitRate is
// hits/(hits+misses), 0 when no reads have happened yet.
type StatsSnapshot struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	HitRate float64
}

func (s *stats) snapshot() StatsSnapshot {
	h := s.hits.Load()
	m := s.misses.Load()
	snap := StatsSnapshot{
		Hits:    h,
		Misses:  m,
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
	}
	if total := h + m; total > 0 {
		snap.HitRate = float64(h) / float64(total)
	}
	return snap
}

func (s *stats) reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.sets.Store(0)
	s.deletes.Store(0)
}
