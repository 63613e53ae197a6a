// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/cache"
	"github.com/iliyamo/ctei-manager/internal/logging"
	"github.com/iliyamo/ctei-manager/internal/pool"
)

// Pool is the part of *pool.Pool the scheduler touches.
type Pool interface {
	Stats() pool.Stats
	ResetWindow()
}

// Cache is the part of *cache.MultiLevel the scheduler touches.
type Cache interface {
	Stats() cache.Stats
	ResetMetrics()
}

// Schedule holds the cron specs.  An empty spec skips its job.
type Schedule struct {
	PoolWindowReset   string
	CacheMetricsReset string
	StatsLog          string
}

// DefaultStatsLog is the period of the stats log line.
const DefaultStatsLog = "@every 5m"

// Scheduler owns a cron instance.
type Scheduler struct {
	cron  *cron.Cron
	pool  Pool
	cache Cache
	log   *zap.Logger
}

// New registers the jobs of s.  pool or cache may be nil, which skips the
// jobs that need them.
func New(s Schedule, p Pool, c Cache, logger *zap.Logger) (*Scheduler, error) {
	sc := &Scheduler{
		cron:  cron.New(),
		pool:  p,
		cache: c,
		log:   logging.OrNop(logger).Named("jobs"),
	}
	add := func(name, spec string, fn func()) error {
		if spec == "" {
			return nil
		}
		if _, err := sc.cron.AddFunc(spec, fn); err != nil {
			return fmt.Errorf("schedule %s %q: %w", name, spec, err)
		}
		sc.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
		return nil
	}
	if p != nil {
		if err := add("pool-window-reset", s.PoolWindowReset, sc.ResetPoolWindow); err != nil {
			return nil, err
		}
	}
	if c != nil {
		if err := add("cache-metrics-reset", s.CacheMetricsReset, sc.ResetCacheMetrics); err != nil {
			return nil, err
		}
	}
	if err := add("stats-log", s.StatsLog, sc.LogStats); err != nil {
		return nil, err
	}
	return sc, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Jobs reports the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

func (s *Scheduler) ResetPoolWindow() {
	st := s.pool.Stats()
	s.log.Info("pool window closed",
		zap.Float64("acquiredPerSecond", st.AcquiredPerSecond),
		zap.Float64("releasedPerSecond", st.ReleasedPerSecond),
		zap.Float64("windowSeconds", st.WindowSeconds))
	s.pool.ResetWindow()
}

func (s *Scheduler) ResetCacheMetrics() {
	st := s.cache.Stats()
	s.log.Info("cache metrics reset", zap.Int64("hits", st.Hits), zap.Int64("misses", st.Misses), zap.Float64("hitRate", st.HitRate))
	s.cache.ResetMetrics()
}

// LogStats writes one line with the current pool and cache figures.
func (s *Scheduler) LogStats() {
	fields := make([]zap.Field, 0, 6)
	if s.pool != nil {
		st := s.pool.Stats()
		fields = append(fields, zap.Int("poolActive", st.Active), zap.Int("poolIdle", st.Idle), zap.Int64("poolTimeouts", st.TotalTimeouts))
	}
	if s.cache != nil {
		st := s.cache.Stats()
		fields = append(fields, zap.Int("cacheEntries", st.Entries), zap.Float64("cacheHitRate", st.HitRate), zap.Int64("cacheRequests", st.TotalRequests))
	}
	s.log.Info("stats", fields...)
}
