// Package promstats exports tagcache counters to Prometheus.
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tagcache"
)

// Collector mirrors tagcache counter increments into prometheus counters,
// one per metric name, labeled by cache prefix.
type Collector struct {
	prefix   string
	counters *prometheus.CounterVec
}

var _ tagcache.Collector = (*Collector)(nil)

// New registers the counter vector with reg and returns the collector.
// Pass prometheus.DefaultRegisterer unless you manage your own registry.
// Registering two collectors on the same registry is fine; they share the
// vector labels (prefix, metric).
func New(reg prometheus.Registerer, prefix string) (*Collector, error) {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tagcache_events_total",
		Help: "tagcache counter events (hits, misses, sets, deletes, tag flushes).",
	}, []string{"prefix", "metric"})

	if err := reg.Register(cv); err != nil {
		// reuse an already-registered vector (two caches, one registry)
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cv = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	return &Collector{prefix: prefix, counters: cv}, nil
}

func (c *Collector) IncCounter(name string, delta int64) {
	if delta <= 0 {
		return
	}
	c.counters.WithLabelValues(c.prefix, name).Add(float64(delta))
}
