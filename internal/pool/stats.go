package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counters is guarded by Pool.mu.  acquired and released count within the
// current window; the rest are lifetime totals.
type counters struct {
	acquired    int64
	released    int64
	created     int64
	destroyed   int64
	timeouts    int64
	windowStart time.Time
}

// Stats is a snapshot of the pool.
type Stats struct {
	Idle              int     `json:"idle"`
	Active            int     `json:"active"`
	Waiting           int     `json:"waiting"`
	MaxConnections    int     `json:"maxConnections"`
	AcquiredPerSecond float64 `json:"acquiredPerSecond"`
	ReleasedPerSecond float64 `json:"releasedPerSecond"`
	TotalTimeouts     int64   `json:"totalTimeouts"`
	TotalCreated      int64   `json:"totalCreated"`
	TotalDestroyed    int64   `json:"totalDestroyed"`
	WindowSeconds     float64 `json:"windowSeconds"`
}

// Stats reports current occupancy and the acquire/release rates over the
// window opened by the last ResetWindow.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := p.now().Sub(p.stats.windowStart).Seconds()
	s := Stats{
		Idle:           len(p.idle),
		Active:         len(p.active),
		Waiting:        len(p.waiters),
		MaxConnections: p.cfg.MaxConnections,
		TotalTimeouts:  p.stats.timeouts,
		TotalCreated:   p.stats.created,
		TotalDestroyed: p.stats.destroyed,
		WindowSeconds:  elapsed,
	}
	if elapsed > 0 {
		s.AcquiredPerSecond = float64(p.stats.acquired) / elapsed
		s.ReleasedPerSecond = float64(p.stats.released) / elapsed
	}
	return s
}

// ResetWindow starts a new rate window.  Lifetime totals are kept.
func (p *Pool[T]) ResetWindow() {
	p.mu.Lock()
	p.stats.acquired = 0
	p.stats.released = 0
	p.stats.windowStart = p.now()
	p.mu.Unlock()
}

// Collectors exposes occupancy gauges to Prometheus.
func (p *Pool[T]) Collectors(namespace, name string) []prometheus.Collector {
	gauge := func(metric, help string, f func(Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        metric,
			Help:        help,
			ConstLabels: prometheus.Labels{"pool": name},
		}, func() float64 { return f(p.Stats()) })
	}
	return []prometheus.Collector{
		gauge("idle", "Idle handles.", func(s Stats) float64 { return float64(s.Idle) }),
		gauge("active", "Handles currently acquired.", func(s Stats) float64 { return float64(s.Active) }),
		gauge("waiting", "Callers queued in Acquire.", func(s Stats) float64 { return float64(s.Waiting) }),
		gauge("timeouts_total", "Acquire calls that timed out.", func(s Stats) float64 { return float64(s.TotalTimeouts) }),
	}
}
