package config

import "time"

// CacheConfig configures the two-tier response cache.  When Enabled is false
// the middleware passes every request through.  The durable tier is used only
// when a Redis client is available.
type CacheConfig struct {
	Enabled         bool
	DefaultTTL      time.Duration
	DurableTTL      time.Duration
	CleanupInterval time.Duration
	Prefix          string
	MaxBodyBytes    int
	// MetricsReset is a cron spec; empty keeps the counters for the process lifetime.
	MetricsReset string
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:         envBool("CACHE_ENABLED", true),
		DefaultTTL:      envDur("CACHE_DEFAULT_TTL", 300*time.Second),
		DurableTTL:      envDur("CACHE_DURABLE_TTL", time.Hour),
		CleanupInterval: envDur("CACHE_CLEANUP_INTERVAL", 60*time.Second),
		Prefix:          envStr("CACHE_PREFIX", "ctei"),
		MaxBodyBytes:    envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		MetricsReset:    envStr("CACHE_METRICS_RESET", ""),
	}
	if cfg.MaxBodyBytes < 0 {
		cfg.MaxBodyBytes = 0
	}
	return cfg
}
