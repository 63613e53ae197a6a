package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Strategy describes how a route is cached.  Call sites pick one of the named
// strategies and refine it with the With* helpers rather than passing TTLs
// around.
type Strategy struct {
	Name string
	TTL  time.Duration
	// VaryByUser appends the principal's id to the key.  Requests without a
	// principal bypass the cache.
	VaryByUser bool
	// VaryByQuery lists the query parameters that take part in the key.  The
	// single entry "*" means every parameter.
	VaryByQuery []string
	// KeyFunc replaces the default METHOD:path key.
	KeyFunc  func(c echo.Context) string
	Disabled bool
}

var (
	// Aggressive suits reference data that rarely changes.
	Aggressive = Strategy{Name: "aggressive", TTL: time.Hour}
	// Moderate suits public listings.
	Moderate = Strategy{Name: "moderate", TTL: 5 * time.Minute}
	// Conservative suits data edited often, such as dashboards.
	Conservative = Strategy{Name: "conservative", TTL: time.Minute}
	// NoCache passes every request through.
	NoCache = Strategy{Name: "no-cache", Disabled: true}
)

// WithQuery returns a copy of s keyed by the given query parameters.
func (s Strategy) WithQuery(params ...string) Strategy {
	s.VaryByQuery = append([]string(nil), params...)
	return s
}

// PerUser returns a copy of s keyed by principal.
func (s Strategy) PerUser() Strategy {
	s.VaryByUser = true
	return s
}

// WithTTL returns a copy of s with a different TTL.
func (s Strategy) WithTTL(ttl time.Duration) Strategy {
	s.TTL = ttl
	return s
}

// StrategyByName resolves the names accepted in configuration.
func StrategyByName(name string) (Strategy, bool) {
	switch name {
	case Aggressive.Name:
		return Aggressive, true
	case Moderate.Name:
		return Moderate, true
	case Conservative.Name:
		return Conservative, true
	case NoCache.Name:
		return NoCache, true
	}
	return Strategy{}, false
}
