package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers load balancer probes.
type HealthHandler struct {
	DB Pinger
	// Breaker reports the durable cache tier's circuit state; nil when the
	// cache runs without Redis.
	Breaker func() string
}

// Health returns 200 while the database answers, 503 otherwise.  The cache
// tier is informational: the service works without it.
func (h *HealthHandler) Health(c echo.Context) error {
	body := echo.Map{"status": "ok"}
	if h.Breaker != nil {
		body["cache"] = h.Breaker()
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
	}
	return c.JSON(http.StatusOK, body)
}
