package config

import (
	"os"
	"time"
)

// QueueConfig configures the RabbitMQ fan-out used for cross-instance cache
// invalidation.  An empty URL disables it.
type QueueConfig struct {
	URL            string
	Exchange       string
	PublishTimeout time.Duration
	MaxBackoff     time.Duration
}

// LoadQueueConfig reads RABBITMQ_URL (or AMQP_URL) and the exchange name.
func LoadQueueConfig() QueueConfig {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	return QueueConfig{
		URL:            url,
		Exchange:       envStr("CACHE_INVALIDATION_EXCHANGE", "ctei.cache.invalidated"),
		PublishTimeout: envDur("QUEUE_PUBLISH_TIMEOUT", 2*time.Second),
		MaxBackoff:     envDur("QUEUE_MAX_BACKOFF", 30*time.Second),
	}
}

// Enabled reports whether a broker URL was configured.
func (q QueueConfig) Enabled() bool { return q.URL != "" }
