package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ctei-manager/internal/auth"
)

// RequireRole rejects principals whose role is not in roles.  It must run
// after JWTAuth; without a principal the request is treated as
// unauthenticated.
func RequireRole(roles ...auth.Role) echo.MiddlewareFunc {
	allowed := make(map[auth.Role]bool, len(roles))
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed[r] = true
		names = append(names, r.String())
	}
	msg := "insufficient role: requires one of " + strings.Join(names, ", ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := Principal(c)
			if !ok {
				return fail(c, http.StatusUnauthorized, "authorization required")
			}
			if !allowed[p.Role] {
				return fail(c, http.StatusForbidden, msg, "allowedRoles", names)
			}
			return next(c)
		}
	}
}
