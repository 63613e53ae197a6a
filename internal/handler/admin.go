package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/logging"
	"github.com/iliyamo/ctei-manager/internal/middleware"
	"github.com/iliyamo/ctei-manager/internal/pool"
	"github.com/iliyamo/ctei-manager/internal/repository"
)

// PoolStatser is implemented by *pool.ConnPool.
type PoolStatser interface {
	Stats() pool.Stats
}

// AdminHandler serves user administration and the cache and pool
// diagnostics.
type AdminHandler struct {
	Users UserStore
	Cache *middleware.ResponseCache
	Pool  PoolStatser
	Log   *zap.Logger
}

func NewAdminHandler(users UserStore, rc *middleware.ResponseCache, p PoolStatser, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{Users: users, Cache: rc, Pool: p, Log: logging.OrNop(logger).Named("admin")}
}

type roleReq struct {
	Role string `json:"role" validate:"required,oneof=ADMIN INVESTIGATOR COMMUNITY"`
}

type invalidateReq struct {
	Pattern string   `json:"pattern" validate:"required_without=Keys"`
	Keys    []string `json:"keys" validate:"omitempty,dive,required"`
}

// ListUsers pages through every account.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, offset := page(c)
	ctx, cancel := withTimeout(c)
	defer cancel()
	users, err := h.Users.List(ctx, limit, offset)
	if err != nil {
		return storeError(c, err, "user")
	}
	return ok(c, http.StatusOK, echo.Map{"items": users, "count": len(users)})
}

// UpdateRole changes a user's role.  Tokens already issued keep their old
// role until they expire.
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	p, found := principal(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "authorization required")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	var req roleReq
	if msg, valid := bindValid(c, &req); !valid {
		return fail(c, http.StatusBadRequest, msg)
	}
	if id == p.UserID {
		return fail(c, http.StatusBadRequest, "cannot change your own role")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.UpdateRole(ctx, id, auth.Role(req.Role)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "user not found")
		}
		return storeError(c, err, "user")
	}
	h.Log.Info("role changed", zap.Int64("userId", id), zap.String("role", req.Role), zap.Int64("by", p.UserID))
	return ok(c, http.StatusOK, echo.Map{"id": id, "role": req.Role})
}

// CacheStats reports cache metrics and the in-process entries.
func (h *AdminHandler) CacheStats(c echo.Context) error {
	store := h.Cache.Store()
	return ok(c, http.StatusOK, echo.Map{
		"stats":   store.Stats(),
		"entries": store.Entries(),
		"size":    store.Len(),
		"durable": store.HasDurable(),
	})
}

// InvalidateCache drops well-known keys matching a pattern and/or exact keys.
func (h *AdminHandler) InvalidateCache(c echo.Context) error {
	var req invalidateReq
	if msg, valid := bindValid(c, &req); !valid {
		return fail(c, http.StatusBadRequest, msg)
	}
	ctx := c.Request().Context()
	deleted := []string{}
	if req.Pattern != "" {
		deleted = append(deleted, h.Cache.InvalidateCache(ctx, req.Pattern)...)
	}
	if len(req.Keys) > 0 {
		h.Cache.InvalidateKeys(ctx, req.Keys...)
		deleted = append(deleted, req.Keys...)
	}
	return ok(c, http.StatusOK, echo.Map{"invalidated": deleted})
}

// ClearCache empties the cache on every instance.
func (h *AdminHandler) ClearCache(c echo.Context) error {
	h.Cache.ClearAll(c.Request().Context())
	return ok(c, http.StatusOK, echo.Map{"stats": h.Cache.Store().Stats()})
}

// PoolStats reports repository connection pool occupancy.
func (h *AdminHandler) PoolStats(c echo.Context) error {
	return ok(c, http.StatusOK, echo.Map{"pool": h.Pool.Stats()})
}
