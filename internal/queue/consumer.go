package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/config"
	"github.com/iliyamo/ctei-manager/internal/logging"
)

// LocalCache is the in-process tier the consumer evicts from.
// *cache.MultiLevel implements it.
type LocalCache interface {
	DeleteLocal(key string)
	ClearLocal()
}

// Consumer applies invalidations published by other instances.
type Consumer struct {
	cfg      config.QueueConfig
	instance string
	target   LocalCache
	log      *zap.Logger
}

func NewConsumer(cfg config.QueueConfig, instanceID string, target LocalCache, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, instance: instanceID, target: target, log: logging.OrNop(logger).Named("consumer")}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	maxBackoff := c.cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.log.Warn("dial broker failed", zap.Error(err), zap.Duration("retryIn", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, c.cfg.Exchange); err != nil {
		return err
	}
	// One exclusive, auto-deleted queue per instance so every instance gets
	// every event.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("listening for cache invalidations", zap.String("exchange", c.cfg.Exchange))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Warn("handle invalidation failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle applies one encoded CacheInvalidatedEvent.  Events published by this
// instance are ignored; it already updated its own cache.
func (c *Consumer) Handle(body []byte) error {
	var ev CacheInvalidatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Source == c.instance {
		return nil
	}
	if ev.ClearsAll() {
		c.target.ClearLocal()
	} else {
		for _, k := range ev.Keys {
			c.target.DeleteLocal(k)
		}
	}
	c.log.Debug("applied invalidation", zap.String("id", ev.ID), zap.String("source", ev.Source), zap.Int("keys", len(ev.Keys)))
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
