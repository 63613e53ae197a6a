package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/logging"
)

// JWTAuth validates the bearer token and attaches the principal to the
// request.  Missing headers and invalid tokens are both 401; the client
// never learns whether a token was forged, malformed or expired, but the
// reason is logged.
func JWTAuth(codec *auth.TokenCodec, logger *zap.Logger) echo.MiddlewareFunc {
	log := logging.OrNop(logger).Named("auth")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return fail(c, http.StatusUnauthorized, "authorization required")
			}
			claims, err := codec.Validate(raw)
			if err != nil {
				log.Info("token rejected",
					zap.String("path", c.Path()),
					zap.String("ip", c.RealIP()),
					zap.String("reason", err.Error()))
				return fail(c, http.StatusUnauthorized, "invalid or expired token")
			}
			setPrincipal(c, claims)
			return next(c)
		}
	}
}

// OptionalAuth attaches the principal when a valid bearer token is present
// and otherwise lets the request through anonymously.
func OptionalAuth(codec *auth.TokenCodec, logger *zap.Logger) echo.MiddlewareFunc {
	log := logging.OrNop(logger).Named("auth")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearerToken(c.Request()); ok {
				if claims, err := codec.Validate(raw); err == nil {
					setPrincipal(c, claims)
				} else {
					log.Debug("optional token ignored", zap.String("reason", err.Error()))
				}
			}
			return next(c)
		}
	}
}
