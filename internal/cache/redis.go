package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/logging"
)

// RedisStore is a DurableStore backed by Redis.  Keys are namespaced with a
// prefix and every call runs through a circuit breaker, so a dead Redis costs
// one fast failure per request instead of a dial timeout.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	cb     *gobreaker.CircuitBreaker
	log    *zap.Logger
}

// NewRedisStore wraps rdb.  The breaker opens after 5 consecutive failures
// and probes again after 30s.
func NewRedisStore(rdb *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	logger = logging.OrNop(logger).Named("cache.redis")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-durable",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &RedisStore{rdb: rdb, prefix: prefix, cb: cb, log: logger}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get returns (nil, false, nil) on a plain miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, false, err
	}
	b, _ := v.([]byte)
	if b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.rdb.Set(ctx, s.key(key), value, ttl).Err()
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.rdb.Del(ctx, full...).Err()
	})
	return err
}

// Clear removes every key under the prefix.  Without a prefix it refuses to
// touch the database.
func (s *RedisStore) Clear(ctx context.Context) error {
	if s.prefix == "" {
		return errors.New("refusing to clear redis without a key prefix")
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 200).Iterator()
		batch := make([]string, 0, 200)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == cap(batch) {
				if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
					return nil, err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return nil, s.rdb.Del(ctx, batch...).Err()
		}
		return nil, nil
	})
	return err
}

// State exposes the breaker state for stats endpoints.
func (s *RedisStore) State() string { return s.cb.State().String() }
