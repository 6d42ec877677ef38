package tagcache

// Metric names reported to the optional Collector.
const (
	MetricHits    = "tagcache_hits_total"
	MetricMisses  = "tagcache_misses_total"
	MetricSets    = "tagcache_sets_total"
	MetricDeletes = "tagcache_deletes_total"
	MetricFlushes = "tagcache_tag_flushes_total"
)

// Collector receives counter increments alongside the always-on in-process
// Stats. Implementations must be safe for concurrent use. See promstats for
// a prometheus-backed implementation.
type Collector interface {
	IncCounter(name string, delta int64)
}

// NopCollector discards all metrics.
type NopCollector struct{}

var _ Collector = (*NopCollector)(nil)

func (NopCollector) IncCounter(string, int64) {}
