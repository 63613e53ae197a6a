package config

import "github.com/iliyamo/ctei-manager/internal/pool"

// PoolConfig sizes the repository connection pool.
type PoolConfig struct {
	pool.Config
	// StatsReset is the cron spec that opens a new rate window.
	StatsReset string
}

// LoadPoolConfig reads POOL_* variables.
func LoadPoolConfig() PoolConfig {
	return PoolConfig{
		Config: pool.Config{
			MaxConnections:  envInt("POOL_MAX_CONNECTIONS", pool.DefaultMaxConnections),
			AcquireTimeout:  envDur("POOL_ACQUIRE_TIMEOUT", pool.DefaultAcquireTimeout),
			IdleTimeout:     envDur("POOL_IDLE_TIMEOUT", pool.DefaultIdleTimeout),
			CleanupInterval: envDur("POOL_CLEANUP_INTERVAL", pool.DefaultCleanupInterval),
		},
		StatsReset: envStr("POOL_STATS_RESET", "@hourly"),
	}
}

