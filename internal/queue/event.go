// Package queue fans cache invalidations out to every running instance over
// a RabbitMQ fanout exchange.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// CacheInvalidatedEvent announces that keys were removed from the shared
// durable tier.  Receivers drop the same keys from their in-process tier.
// An event without keys means the whole cache was cleared.
type CacheInvalidatedEvent struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Keys   []string  `json:"keys,omitempty"`
	At     time.Time `json:"at"`
}

// NewCacheInvalidatedEvent stamps a fresh event from instance source.
func NewCacheInvalidatedEvent(source string, keys []string) CacheInvalidatedEvent {
	return CacheInvalidatedEvent{
		ID:     uuid.NewString(),
		Source: source,
		Keys:   keys,
		At:     time.Now().UTC(),
	}
}

// ClearsAll reports whether the event stands for a full clear.
func (e CacheInvalidatedEvent) ClearsAll() bool { return len(e.Keys) == 0 }
