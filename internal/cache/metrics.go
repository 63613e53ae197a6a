package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-wide counters of one MultiLevel instance.
// Counters accumulate until ResetMetrics is called.
type Metrics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	requests  atomic.Int64
	evictions atomic.Int64
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Sets          int64   `json:"sets"`
	Deletes       int64   `json:"deletes"`
	TotalRequests int64   `json:"totalRequests"`
	Evictions     int64   `json:"evictions"`
	HitRate       float64 `json:"hitRate"`
	Entries       int     `json:"entries"`
	Durable       bool    `json:"durable"`
}

// Stats snapshots the counters.  HitRate is hits / totalRequests, 0 when
// nothing was requested yet.
func (c *MultiLevel) Stats() Stats {
	s := Stats{
		Hits:          c.metrics.hits.Load(),
		Misses:        c.metrics.misses.Load(),
		Sets:          c.metrics.sets.Load(),
		Deletes:       c.metrics.deletes.Load(),
		TotalRequests: c.metrics.requests.Load(),
		Evictions:     c.metrics.evictions.Load(),
		Entries:       c.Len(),
		Durable:       c.durable != nil,
	}
	if s.TotalRequests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.TotalRequests)
	}
	return s
}

// ResetMetrics zeroes every counter.
func (c *MultiLevel) ResetMetrics() {
	c.metrics.hits.Store(0)
	c.metrics.misses.Store(0)
	c.metrics.sets.Store(0)
	c.metrics.deletes.Store(0)
	c.metrics.requests.Store(0)
	c.metrics.evictions.Store(0)
}

// Collectors exposes the counters to Prometheus.  Because counters can be
// reset they are published as gauges.
func (c *MultiLevel) Collectors(namespace string) []prometheus.Collector {
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, f)
	}
	return []prometheus.Collector{
		gauge("hits", "Cache hits since the last metrics reset.", func() float64 { return float64(c.metrics.hits.Load()) }),
		gauge("misses", "Cache misses since the last metrics reset.", func() float64 { return float64(c.metrics.misses.Load()) }),
		gauge("sets", "Cache writes since the last metrics reset.", func() float64 { return float64(c.metrics.sets.Load()) }),
		gauge("deletes", "Cache deletes since the last metrics reset.", func() float64 { return float64(c.metrics.deletes.Load()) }),
		gauge("requests", "Cache lookups since the last metrics reset.", func() float64 { return float64(c.metrics.requests.Load()) }),
		gauge("evictions", "Expired entries removed by cleanup.", func() float64 { return float64(c.metrics.evictions.Load()) }),
		gauge("hit_rate", "Hits divided by lookups.", func() float64 { return c.Stats().HitRate }),
		gauge("entries", "Entries held in process memory.", func() float64 { return float64(c.Len()) }),
	}
}
