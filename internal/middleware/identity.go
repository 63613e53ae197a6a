package middleware

// identity.go holds the request-scoped principal helpers shared by the auth,
// role, cache and rate limit middleware.

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ctei-manager/internal/auth"
)

// Context keys set by JWTAuth and OptionalAuth.  user_id and role mirror the
// principal for handlers that only need one field.
const (
	PrincipalKey = "principal"
	UserIDKey    = "user_id"
	RoleKey      = "role"
)

// Principal returns the authenticated claims attached to the request.
func Principal(c echo.Context) (auth.Claims, bool) {
	p, ok := c.Get(PrincipalKey).(auth.Claims)
	return p, ok
}

func setPrincipal(c echo.Context, p auth.Claims) {
	c.Set(PrincipalKey, p)
	c.Set(UserIDKey, p.UserID)
	c.Set(RoleKey, p.Role)
}

// userID returns the principal's id as a string, or "guest".
func userID(c echo.Context) string {
	if p, ok := Principal(c); ok {
		return strconv.FormatInt(p.UserID, 10)
	}
	return "guest"
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

// fail writes the structured error body used by every middleware rejection.
func fail(c echo.Context, status int, msg string, extra ...any) error {
	body := echo.Map{"success": false, "error": msg}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			body[k] = extra[i+1]
		}
	}
	return c.JSON(status, body)
}
