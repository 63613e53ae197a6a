// Package cache implements a two-tier read-through cache: an in-process map
// in front of an optional durable key-value store shared between instances.
//
// The in-process tier is the source of truth for availability.  Expired
// entries are treated as absent by Get and physically removed by Cleanup,
// which runs on a ticker between Start and Stop.  Durable-tier errors are
// logged and degrade to a miss or a skipped write.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/ctei-manager/internal/logging"
)

// Defaults applied by New when the corresponding Options field is zero.
const (
	DefaultTTL             = 300 * time.Second
	DefaultDurableTTL      = time.Hour
	DefaultCleanupInterval = 60 * time.Second
)

// Options configures a MultiLevel cache.
type Options struct {
	// DefaultTTL applies to the in-process tier when Set is called with ttl <= 0.
	DefaultTTL time.Duration
	// DurableTTL applies to the durable tier when Set is called with ttl <= 0.
	DurableTTL time.Duration
	// CleanupInterval is the sweep period used by Start.
	CleanupInterval time.Duration
	// Durable is the optional second tier.
	Durable DurableStore
	Logger  *zap.Logger
	// Now replaces time.Now in tests.
	Now func() time.Time
}

type entry struct {
	data    json.RawMessage
	created time.Time
	// stored is when the value was first written to either tier.
	stored time.Time
	ttl    time.Duration
	hits   int64
}

func (e *entry) valid(now time.Time) bool { return now.Sub(e.created) < e.ttl }

// EntryInfo describes an in-process entry for diagnostics.
type EntryInfo struct {
	Key  string        `json:"key"`
	Age  time.Duration `json:"age"`
	TTL  time.Duration `json:"ttl"`
	Hits int64         `json:"hits"`
}

// MultiLevel is the two-tier cache.  The zero value is not usable; call New.
type MultiLevel struct {
	opts    Options
	log     *zap.Logger
	now     func() time.Time
	durable DurableStore

	mu    sync.RWMutex
	items map[string]*entry

	metrics Metrics
	group   singleflight.Group

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a cache.  It does not start the cleanup loop; call Start.
func New(opts Options) *MultiLevel {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.DurableTTL <= 0 {
		opts.DurableTTL = DefaultDurableTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &MultiLevel{
		opts:    opts,
		log:     logging.OrNop(opts.Logger).Named("cache"),
		now:     now,
		durable: opts.Durable,
		items:   make(map[string]*entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// DefaultTTL is the in-process TTL used when callers pass ttl <= 0.
func (c *MultiLevel) DefaultTTL() time.Duration { return c.opts.DefaultTTL }

// HasDurable reports whether a durable tier is configured.
func (c *MultiLevel) HasDurable() bool { return c.durable != nil }

// Start launches the periodic cleanup sweep.  It returns immediately.
func (c *MultiLevel) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		t := time.NewTicker(c.opts.CleanupInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				if n := c.Cleanup(); n > 0 {
					c.log.Debug("cache cleanup", zap.Int("evicted", n))
				}
			}
		}
	}()
}

// Stop ends the cleanup loop started by Start and waits for it to exit.
// Calling Stop without Start is a no-op.
func (c *MultiLevel) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	if c.started.Load() {
		<-c.done
	}
}

// Get returns the cached bytes for key.  The in-process tier is consulted
// first, then the durable tier; a durable hit is promoted into memory.
func (c *MultiLevel) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	data, _, ok := c.Lookup(ctx, key)
	return data, ok
}

// Lookup is Get that also reports when the value was originally stored.
func (c *MultiLevel) Lookup(ctx context.Context, key string) (json.RawMessage, time.Time, bool) {
	c.metrics.requests.Add(1)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.items[key]; ok && e.valid(now) {
		e.hits++
		data, stored := e.data, e.stored
		c.mu.Unlock()
		c.metrics.hits.Add(1)
		return data, stored, true
	}
	c.mu.Unlock()

	if data, stored, ok := c.getDurable(ctx, key, now); ok {
		c.metrics.hits.Add(1)
		return data, stored, true
	}
	c.metrics.misses.Add(1)
	return nil, time.Time{}, false
}

func (c *MultiLevel) getDurable(ctx context.Context, key string, now time.Time) (json.RawMessage, time.Time, bool) {
	var zero time.Time
	if c.durable == nil {
		return nil, zero, false
	}
	raw, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.log.Warn("durable get failed", zap.String("key", key), zap.Error(err))
		return nil, zero, false
	}
	if !ok {
		return nil, zero, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("durable entry undecodable", zap.String("key", key), zap.Error(err))
		c.deleteDurable(ctx, key)
		return nil, zero, false
	}
	left := env.remaining(now)
	if left <= 0 {
		c.deleteDurable(ctx, key)
		return nil, zero, false
	}
	ttl := c.opts.DefaultTTL
	if left < ttl {
		ttl = left
	}
	c.mu.Lock()
	stored := time.UnixMilli(env.Timestamp)
	c.items[key] = &entry{data: env.Data, created: now, stored: stored, ttl: ttl, hits: 1}
	c.mu.Unlock()
	return env.Data, stored, true
}

// GetJSON decodes the cached value for key into dst.  Undecodable values
// are reported as a miss.
func (c *MultiLevel) GetJSON(ctx context.Context, key string, dst any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("cached value undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores data in memory and, when configured, in the durable tier.  With
// ttl <= 0 the in-process tier uses DefaultTTL and the durable tier uses the
// longer DurableTTL; an explicit ttl applies to both tiers.
func (c *MultiLevel) Set(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) {
	memTTL, durTTL := ttl, ttl
	if ttl <= 0 {
		memTTL, durTTL = c.opts.DefaultTTL, c.opts.DurableTTL
	}
	now := c.now()

	c.mu.Lock()
	c.items[key] = &entry{data: data, created: now, stored: now, ttl: memTTL}
	c.mu.Unlock()
	c.metrics.sets.Add(1)

	if c.durable == nil {
		return
	}
	payload, err := json.Marshal(newEnvelope(data, now, durTTL))
	if err != nil {
		c.log.Warn("durable envelope encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.durable.Set(ctx, key, payload, durTTL); err != nil {
		c.log.Warn("durable set failed", zap.String("key", key), zap.Error(err))
	}
}

// SetJSON marshals v and stores it.
func (c *MultiLevel) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	c.Set(ctx, key, data, ttl)
	return nil
}

// Delete removes key from both tiers.
func (c *MultiLevel) Delete(ctx context.Context, key string) {
	c.DeleteLocal(key)
	c.deleteDurable(ctx, key)
}

// DeleteLocal removes key from the in-process tier only.  It is used when
// another instance already cleared the durable tier.
func (c *MultiLevel) DeleteLocal(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	c.metrics.deletes.Add(1)
}

func (c *MultiLevel) deleteDurable(ctx context.Context, key string) {
	if c.durable == nil {
		return
	}
	if err := c.durable.Delete(ctx, key); err != nil {
		c.log.Warn("durable delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear empties the in-process tier and the durable namespace.
func (c *MultiLevel) Clear(ctx context.Context) {
	c.ClearLocal()
	if c.durable == nil {
		return
	}
	if err := c.durable.Clear(ctx); err != nil {
		c.log.Warn("durable clear failed", zap.Error(err))
	}
}

// ClearLocal empties the in-process tier only.
func (c *MultiLevel) ClearLocal() {
	c.mu.Lock()
	c.items = make(map[string]*entry)
	c.mu.Unlock()
}

// Cleanup evicts expired in-process entries and returns how many it removed.
func (c *MultiLevel) Cleanup() int {
	now := c.now()
	c.mu.Lock()
	n := 0
	for k, e := range c.items {
		if !e.valid(now) {
			delete(c.items, k)
			n++
		}
	}
	c.mu.Unlock()
	c.metrics.evictions.Add(int64(n))
	return n
}

// Keys lists in-process keys in sorted order, expired ones included until
// the next sweep.
func (c *MultiLevel) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Entries describes every live in-process entry.
func (c *MultiLevel) Entries() []EntryInfo {
	now := c.now()
	c.mu.RLock()
	out := make([]EntryInfo, 0, len(c.items))
	for k, e := range c.items {
		if !e.valid(now) {
			continue
		}
		out = append(out, EntryInfo{Key: k, Age: now.Sub(e.created), TTL: e.ttl, Hits: e.hits})
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len is the number of in-process entries, expired ones included.
func (c *MultiLevel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Loader produces a value to cache on a miss.
type Loader func(ctx context.Context) (any, error)

// Remember returns the cached value for key or calls load and caches its
// result.  Concurrent misses for the same key share one load call.
func (c *MultiLevel) Remember(ctx context.Context, key string, ttl time.Duration, load Loader) (json.RawMessage, error) {
	if data, ok := c.Get(ctx, key); ok {
		return data, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		e, ok := c.items[key]
		fresh := ok && e.valid(c.now())
		c.mu.RUnlock()
		if fresh {
			return e.data, nil
		}
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode cache value %q: %w", key, err)
		}
		c.Set(ctx, key, data, ttl)
		return json.RawMessage(data), nil
	})
	if err != nil {
		return nil, err
	}
	data, ok := v.(json.RawMessage)
	if !ok {
		return nil, errors.New("cache: unexpected loader result")
	}
	return data, nil
}
