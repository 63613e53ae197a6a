// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/handler"
	"github.com/iliyamo/ctei-manager/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, metrics http.Handler) {
	e.GET("/healthz", h.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers register/login behind the rate limiter and the
// current-user endpoint behind JWTAuth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens *auth.TokenCodec, limiter echo.MiddlewareFunc, logger *zap.Logger) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.GET("/me", a.Me,
		middleware.JWTAuth(tokens, logger),
		middleware.RequireRole(auth.RoleAdmin, auth.RoleInvestigator, auth.RoleCommunity))
}

// RegisterPublic registers the cached read-only portal.  OptionalAuth runs
// first so logging and rate limiting can see the caller, but none of these
// keys vary by user.
func RegisterPublic(e *echo.Echo, p *handler.ProjectHandler, pr *handler.ProductHandler, s *handler.StatsHandler,
	rc *middleware.ResponseCache, tokens *auth.TokenCodec, logger *zap.Logger) {
	optional := middleware.OptionalAuth(tokens, logger)
	listing := middleware.Moderate.WithQuery("status", "q", "type", "limit", "offset")

	e.GET("/v1/projects", p.List, optional, rc.Use(listing))
	e.GET("/v1/projects/:id", p.Get, optional, rc.Use(middleware.Moderate))
	e.GET("/v1/projects/:id/products", p.ListProducts, optional, rc.Use(middleware.Moderate))
	e.GET("/v1/products", pr.List, optional, rc.Use(listing))
	e.GET("/v1/stats", s.Summary, optional)
}

// RegisterDashboard registers project writes and the per-user dashboard for
// investigators and admins.
func RegisterDashboard(e *echo.Echo, p *handler.ProjectHandler, rc *middleware.ResponseCache, tokens *auth.TokenCodec, logger *zap.Logger) {
	staff := []echo.MiddlewareFunc{
		middleware.JWTAuth(tokens, logger),
		middleware.RequireRole(auth.RoleInvestigator, auth.RoleAdmin),
	}
	e.POST("/v1/projects", p.Create, staff...)
	e.PUT("/v1/projects/:id", p.Update, staff...)
	e.DELETE("/v1/projects/:id", p.Delete, staff...)
	e.POST("/v1/projects/:id/products", p.CreateProduct, staff...)

	dash := e.Group("/v1/dashboard", staff...)
	dash.GET("/projects", p.Dashboard, rc.Use(middleware.Conservative.PerUser().WithQuery("status", "q", "limit", "offset")))
}

// RegisterAdmin registers the admin-only endpoints.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, tokens *auth.TokenCodec, logger *zap.Logger) {
	g := e.Group("/v1/admin", middleware.JWTAuth(tokens, logger), middleware.RequireRole(auth.RoleAdmin))
	g.GET("/users", a.ListUsers)
	g.PUT("/users/:id/role", a.UpdateRole)
	g.GET("/cache/stats", a.CacheStats)
	g.POST("/cache/invalidate", a.InvalidateCache)
	g.DELETE("/cache", a.ClearCache)
	g.GET("/pool/stats", a.PoolStats)
}
