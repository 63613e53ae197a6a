// Package pool implements a bounded resource pool with a FIFO waiter queue.
//
// A handle is always in exactly one state: idle, active or untracked (being
// created or destroyed).  Acquire hands out an idle handle, creates a new one
// while fewer than MaxConnections are active, or queues the caller until a
// Release hands a handle over directly or the acquire timeout fires.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/logging"
)

var (
	// ErrAcquireTimeout is returned to a waiter whose timeout fired first.
	ErrAcquireTimeout = errors.New("pool: acquire timeout")
	// ErrPoolClosed is returned by Acquire after or during Close.
	ErrPoolClosed = errors.New("pool: closed")
	// ErrUnknownHandle is returned when releasing a handle that is not active.
	ErrUnknownHandle = errors.New("pool: handle is not active")
)

// Factory creates and destroys the pooled handles.
type Factory[T comparable] interface {
	Create(ctx context.Context) (T, error)
	Destroy(h T) error
}

// Config sizes the pool.  Zero values take the defaults below.
type Config struct {
	MaxConnections  int
	AcquireTimeout  time.Duration
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

const (
	DefaultMaxConnections  = 10
	DefaultAcquireTimeout  = 5 * time.Second
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultCleanupInterval = 30 * time.Second
)

type idleHandle[T comparable] struct {
	h     T
	since time.Time
}

type result[T comparable] struct {
	h   T
	err error
}

// waiter is a queued Acquire.  settled flips exactly once, under the pool
// lock, by whichever of handoff, timeout or close gets there first.
type waiter[T comparable] struct {
	ready   chan result[T]
	settled bool
}

// Pool is safe for concurrent use.
type Pool[T comparable] struct {
	cfg     Config
	factory Factory[T]
	log     *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	idle     []idleHandle[T]
	active   map[T]struct{}
	creating int
	waiters  []*waiter[T]
	closed   bool

	stats counters

	stop chan struct{}
	done chan struct{}
}

// New builds a pool and starts its idle cleanup loop.
func New[T comparable](factory Factory[T], cfg Config, logger *zap.Logger) *Pool[T] {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	p := &Pool[T]{
		cfg:     cfg,
		factory: factory,
		log:     logging.OrNop(logger).Named("pool"),
		now:     time.Now,
		active:  make(map[T]struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.stats.windowStart = p.now()
	go p.cleanupLoop()
	return p
}

// Acquire returns a handle, blocking up to AcquireTimeout (or until ctx is
// done) when the pool is exhausted.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		h := p.idle[n-1].h
		p.idle = p.idle[:n-1]
		p.active[h] = struct{}{}
		p.stats.acquired++
		p.mu.Unlock()
		return h, nil
	}
	if len(p.active)+p.creating < p.cfg.MaxConnections {
		p.creating++
		p.mu.Unlock()
		return p.create(ctx)
	}
	w := &waiter[T]{ready: make(chan result[T], 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case r := <-w.ready:
		return r.h, r.err
	case <-timer.C:
		return p.abandon(w, ErrAcquireTimeout)
	case <-ctx.Done():
		return p.abandon(w, ctx.Err())
	}
}

// abandon settles w with err unless a handoff or close already settled it,
// in which case that outcome wins.
func (p *Pool[T]) abandon(w *waiter[T], err error) (T, error) {
	p.mu.Lock()
	if w.settled {
		p.mu.Unlock()
		r := <-w.ready
		return r.h, r.err
	}
	w.settled = true
	p.removeWaiter(w)
	if errors.Is(err, ErrAcquireTimeout) {
		p.stats.timeouts++
	}
	p.mu.Unlock()
	if errors.Is(err, ErrAcquireTimeout) {
		p.log.Warn("acquire timed out", zap.Duration("timeout", p.cfg.AcquireTimeout))
	}
	var zero T
	return zero, err
}

func (p *Pool[T]) removeWaiter(w *waiter[T]) {
	for i, x := range p.waiters {
		if x == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *Pool[T]) create(ctx context.Context) (T, error) {
	h, err := p.factory.Create(ctx)

	p.mu.Lock()
	p.creating--
	if err != nil {
		w := p.nextCreator()
		p.mu.Unlock()
		if w != nil {
			go p.createFor(w)
		}
		var zero T
		return zero, err
	}
	if p.closed {
		p.mu.Unlock()
		p.destroy(h)
		var zero T
		return zero, ErrPoolClosed
	}
	p.active[h] = struct{}{}
	p.stats.created++
	p.stats.acquired++
	p.mu.Unlock()
	return h, nil
}

// nextCreator pops the oldest waiter and reserves a creation slot for it
// when capacity is free.  p.mu must be held.
func (p *Pool[T]) nextCreator() *waiter[T] {
	if p.closed || len(p.waiters) == 0 || len(p.active)+p.creating >= p.cfg.MaxConnections {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	w.settled = true
	p.creating++
	return w
}

func (p *Pool[T]) createFor(w *waiter[T]) {
	h, err := p.create(context.Background())
	w.ready <- result[T]{h: h, err: err}
}

// Release returns h to the pool.  The oldest waiter, if any, receives it
// directly; otherwise it goes back to the idle list, or is destroyed when the
// idle list is full or the pool is closed.
func (p *Pool[T]) Release(h T) error {
	p.mu.Lock()
	if _, ok := p.active[h]; !ok {
		p.mu.Unlock()
		return ErrUnknownHandle
	}
	delete(p.active, h)
	p.stats.released++

	if p.closed {
		p.mu.Unlock()
		p.destroy(h)
		return nil
	}
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		w.settled = true
		p.active[h] = struct{}{}
		p.stats.acquired++
		w.ready <- result[T]{h: h}
		p.mu.Unlock()
		return nil
	}
	if len(p.idle) < p.cfg.MaxConnections {
		p.idle = append(p.idle, idleHandle[T]{h: h, since: p.now()})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	p.destroy(h)
	return nil
}

// Discard drops an active handle without returning it to the idle list, for
// handles the caller knows are broken.  A waiter, if any, gets a fresh one.
func (p *Pool[T]) Discard(h T) error {
	p.mu.Lock()
	if _, ok := p.active[h]; !ok {
		p.mu.Unlock()
		return ErrUnknownHandle
	}
	delete(p.active, h)
	p.stats.released++
	w := p.nextCreator()
	p.mu.Unlock()
	p.destroy(h)

	if w != nil {
		p.createFor(w)
	}
	return nil
}

func (p *Pool[T]) destroy(h T) {
	if err := p.factory.Destroy(h); err != nil {
		p.log.Warn("destroy handle failed", zap.Error(err))
	}
	p.mu.Lock()
	p.stats.destroyed++
	p.mu.Unlock()
}

func (p *Pool[T]) cleanupLoop() {
	defer close(p.done)
	t := time.NewTicker(p.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			if n := p.Cleanup(); n > 0 {
				p.log.Debug("pruned idle handles", zap.Int("count", n))
			}
		}
	}
}

// Cleanup destroys idle handles released longer than IdleTimeout ago and
// returns how many it removed.
func (p *Pool[T]) Cleanup() int {
	cutoff := p.now().Add(-p.cfg.IdleTimeout)
	p.mu.Lock()
	var stale []T
	kept := p.idle[:0]
	for _, ih := range p.idle {
		if ih.since.Before(cutoff) {
			stale = append(stale, ih.h)
			continue
		}
		kept = append(kept, ih)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, h := range stale {
		p.destroy(h)
	}
	return len(stale)
}

// Close stops the cleanup loop, destroys idle and active handles and rejects
// every queued waiter with ErrPoolClosed.  It is idempotent.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	waiters := p.waiters
	p.waiters = nil
	for _, w := range waiters {
		w.settled = true
		w.ready <- result[T]{err: ErrPoolClosed}
	}
	handles := make([]T, 0, len(p.idle)+len(p.active))
	for _, ih := range p.idle {
		handles = append(handles, ih.h)
	}
	for h := range p.active {
		handles = append(handles, h)
	}
	p.idle = nil
	p.active = make(map[T]struct{})
	p.mu.Unlock()

	<-p.done
	for _, h := range handles {
		p.destroy(h)
	}
	return nil
}
