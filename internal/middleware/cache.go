package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/cache"
	"github.com/iliyamo/ctei-manager/internal/config"
	"github.com/iliyamo/ctei-manager/internal/logging"
)

// Response headers written by the cache middleware.
const (
	HeaderCacheStatus = "X-Cache-Status"
	HeaderCacheKey    = "X-Cache-Key"
	HeaderCacheTTL    = "X-Cache-TTL"
)

// WellKnownKeys are the keys InvalidateCache knows about.  Invalidation is
// matched against this list only; keys carrying query or user suffixes age
// out through their TTL.
var WellKnownKeys = []string{
	"GET:/v1/projects",
	"GET:/v1/products",
	"GET:/v1/stats",
}

// InvalidationPublisher fans invalidated keys out to other instances.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, keys []string) error
}

// captureWriter tees the response body into a buffer while forwarding it.
// Once more than limit bytes were written the capture is marked overflowed.
type captureWriter struct {
	http.ResponseWriter
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *captureWriter) Flush() {
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ResponseCache applies a MultiLevel cache to GET handlers.
type ResponseCache struct {
	store     *cache.MultiLevel
	cfg       config.CacheConfig
	log       *zap.Logger
	publisher InvalidationPublisher
	known     []string
}

// NewResponseCache builds the middleware factory.  publisher may be nil.
func NewResponseCache(store *cache.MultiLevel, cfg config.CacheConfig, publisher InvalidationPublisher, logger *zap.Logger) *ResponseCache {
	return &ResponseCache{
		store:     store,
		cfg:       cfg,
		log:       logging.OrNop(logger).Named("response-cache"),
		publisher: publisher,
		known:     WellKnownKeys,
	}
}

// Store exposes the underlying cache.
func (rc *ResponseCache) Store() *cache.MultiLevel { return rc.store }

// Use returns middleware caching 200 JSON GET responses under s.
func (rc *ResponseCache) Use(s Strategy) echo.MiddlewareFunc {
	if rc == nil || rc.store == nil || !rc.cfg.Enabled || s.Disabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = rc.store.DefaultTTL()
	}
	ttlHeader := strconv.Itoa(int(ttl / time.Second))
	visibility := "public"
	if s.VaryByUser {
		visibility = "private"
	}
	cacheControl := visibility + ", max-age=" + ttlHeader

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key, ok := CacheKey(c, s)
			if !ok {
				return next(c)
			}
			ctx := c.Request().Context()
			h := c.Response().Header()

			if data, stored, hit := rc.store.Lookup(ctx, key); hit {
				h.Set(HeaderCacheStatus, "HIT")
				h.Set(HeaderCacheKey, key)
				h.Set(HeaderCacheTTL, ttlHeader)
				h.Set("Cache-Control", cacheControl)
				h.Set("Last-Modified", stored.UTC().Format(http.TimeFormat))
				return c.JSONBlob(http.StatusOK, data)
			}

			h.Set(HeaderCacheStatus, "MISS")
			h.Set(HeaderCacheKey, key)
			h.Set(HeaderCacheTTL, ttlHeader)
			// Freshness headers go out only on responses that may be stored.
			c.Response().Before(func() {
				if c.Response().Status == http.StatusOK {
					h.Set("Cache-Control", cacheControl)
					h.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
				}
			})

			original := c.Response().Writer
			cw := &captureWriter{ResponseWriter: original, limit: rc.cfg.MaxBodyBytes}
			c.Response().Writer = cw
			err := next(c)
			c.Response().Writer = original
			if err != nil {
				return err
			}

			// Hits are replayed as 200, so other statuses are not stored.
			if c.Response().Status != http.StatusOK || cw.overflow {
				return nil
			}
			if !strings.HasPrefix(h.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
				return nil
			}
			body := cw.buf.Bytes()
			if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
				return nil
			}
			rc.store.Set(ctx, key, append(json.RawMessage(nil), body...), ttl)
			return nil
		}
	}
}

// CacheKey computes the key for c under s.  ok is false when the request
// must bypass the cache (per-user strategy without a principal).
func CacheKey(c echo.Context, s Strategy) (string, bool) {
	if s.KeyFunc != nil {
		k := s.KeyFunc(c)
		return k, k != ""
	}
	r := c.Request()
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(':')
	b.WriteString(r.URL.Path)

	if len(s.VaryByQuery) > 0 {
		if q := filterQuery(r.URL.Query(), s.VaryByQuery); q != "" {
			b.WriteByte('?')
			b.WriteString(q)
		}
	}
	if s.VaryByUser {
		p, ok := Principal(c)
		if !ok {
			return "", false
		}
		b.WriteString(":user:")
		b.WriteString(strconv.FormatInt(p.UserID, 10))
	}
	return b.String(), true
}

// filterQuery keeps the allowed parameters and encodes them sorted by name
// and value.
func filterQuery(q url.Values, allowed []string) string {
	keep := url.Values{}
	all := len(allowed) == 1 && allowed[0] == "*"
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	for k, vs := range q {
		if !all && !set[k] {
			continue
		}
		vs = append([]string(nil), vs...)
		sort.Strings(vs)
		keep[k] = vs
	}
	return keep.Encode()
}

// InvalidateCache deletes every well-known key containing pattern from both
// tiers, notifies other instances, and returns the deleted keys.
func (rc *ResponseCache) InvalidateCache(ctx context.Context, pattern string) []string {
	var keys []string
	for _, k := range rc.known {
		if strings.Contains(k, pattern) {
			keys = append(keys, k)
		}
	}
	rc.InvalidateKeys(ctx, keys...)
	return keys
}

// InvalidateKeys deletes exact keys from both tiers and notifies other
// instances.
func (rc *ResponseCache) InvalidateKeys(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		rc.store.Delete(ctx, k)
	}
	rc.log.Debug("cache invalidated", zap.Strings("keys", keys))
	if rc.publisher == nil {
		return
	}
	if err := rc.publisher.PublishInvalidation(ctx, keys); err != nil {
		rc.log.Warn("publish invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// ClearAll empties both tiers and tells other instances to drop their
// in-process entries.  An invalidation without keys means everything.
func (rc *ResponseCache) ClearAll(ctx context.Context) {
	rc.store.Clear(ctx)
	rc.log.Info("cache cleared")
	if rc.publisher == nil {
		return
	}
	if err := rc.publisher.PublishInvalidation(ctx, nil); err != nil {
		rc.log.Warn("publish clear failed", zap.Error(err))
	}
}
