package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ctei-manager/internal/cache"
)

// StatsKey is the cache key of the portal summary.  It is one of the
// well-known keys, so project and product writes invalidate it.
const StatsKey = "GET:/v1/stats"

// StatsHandler serves the portal summary through the cache's read-through
// path so concurrent misses compute it once.
type StatsHandler struct {
	Stats StatsStore
	Cache *cache.MultiLevel
	TTL   time.Duration
}

func NewStatsHandler(stats StatsStore, c *cache.MultiLevel, ttl time.Duration) *StatsHandler {
	return &StatsHandler{Stats: stats, Cache: c, TTL: ttl}
}

func (h *StatsHandler) Summary(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	load := func(ctx context.Context) (any, error) { return h.Stats.Summary(ctx) }
	if h.Cache == nil {
		s, err := load(ctx)
		if err != nil {
			return storeError(c, err, "stats")
		}
		return ok(c, http.StatusOK, echo.Map{"stats": s})
	}
	raw, err := h.Cache.Remember(ctx, StatsKey, h.TTL, load)
	if err != nil {
		return storeError(c, err, "stats")
	}
	return ok(c, http.StatusOK, echo.Map{"stats": raw})
}
