// Package handler exposes the HTTP handlers of the portal and the dashboard.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/middleware"
	"github.com/iliyamo/ctei-manager/internal/pool"
	"github.com/iliyamo/ctei-manager/internal/repository"
)

// requestTimeout bounds the store calls made by a single request.
const requestTimeout = 5 * time.Second

// RequestValidator plugs go-playground/validator into echo.Context.Validate.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *RequestValidator) Validate(i any) error { return rv.v.Struct(i) }

// bindValid binds the body into dst and validates it.  The returned message
// is safe to show to clients.
func bindValid(c echo.Context, dst any) (string, bool) {
	if err := c.Bind(dst); err != nil {
		return "invalid body", false
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s: %s", lowerFirst(fe.Field()), fe.Tag()))
			}
			return "validation failed: " + strings.Join(parts, ", "), false
		}
		return "invalid body", false
	}
	return "", true
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}

func ok(c echo.Context, status int, body echo.Map) error {
	body["success"] = true
	return c.JSON(status, body)
}

// paramID parses a positive integer path parameter.
func paramID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// page reads limit and offset query parameters.  The repositories clamp them.
func page(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// principal returns the authenticated caller.  Routes using it sit behind
// JWTAuth, so a missing principal is a wiring error reported as 401.
func principal(c echo.Context) (auth.Claims, bool) {
	return middleware.Principal(c)
}

// storeError maps repository and pool errors to responses.
func storeError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, repository.ErrForbidden):
		return fail(c, http.StatusForbidden, "not allowed to modify this "+what)
	case errors.Is(err, repository.ErrConflict):
		return fail(c, http.StatusConflict, what+" has dependent records")
	case errors.Is(err, pool.ErrAcquireTimeout), errors.Is(err, context.DeadlineExceeded):
		return fail(c, http.StatusServiceUnavailable, "database busy, retry later")
	}
	return fail(c, http.StatusInternalServerError, "database error")
}
