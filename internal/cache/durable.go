package cache

import (
	"context"
	"encoding/json"
	"time"
)

// DurableStore is the optional second tier.  Implementations return raw
// errors; MultiLevel logs and swallows them so the durable tier never fails
// a caller.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// envelope is the durable representation of an entry.  Timestamp is unix
// milliseconds and TTL is whole seconds so other readers of the store can
// apply the same validity rule.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

func newEnvelope(data json.RawMessage, now time.Time, ttl time.Duration) envelope {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return envelope{Data: data, Timestamp: now.UnixMilli(), TTL: secs}
}

// remaining is the time left before the envelope expires; <= 0 when expired.
func (e envelope) remaining(now time.Time) time.Duration {
	expires := time.UnixMilli(e.Timestamp).Add(time.Duration(e.TTL) * time.Second)
	return expires.Sub(now)
}
