// Package bus publishes router lifecycle events so downstream consumers
// (analytics, auditing) can observe query traffic without sitting in the
// answer path.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/inkrouter/ink-router/internal/config"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

// Topics emitted by the router.
const (
	TopicQueryCompleted   = "query.completed"
	TopicRegistryReloaded = "registry.reloaded"
	TopicCacheCleared     = "cache.cleared"
)

// Event is the envelope carried on every topic.
type Event struct {
	Topic     string         `json:"topic"`
	Timestamp time.Time      `json:"timestamp"`
	Session   string         `json:"session,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Handler consumes events for a topic. Handlers must not block.
type Handler func(ctx context.Context, event Event)

// Bus fans events out to subscribers.
type Bus interface {
	// Publish emits an event. Publish is fire-and-forget: errors are
	// reported but never fail the query that produced the event.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for a topic.
	Subscribe(topic string, handler Handler)

	// Close stops delivery and releases resources.
	Close() error
}

// New builds a bus from configuration.
func New(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryBus(log), nil
	case "kafka":
		return NewKafkaBus(cfg.KafkaBrokerList(), cfg.ConsumerGroup, log)
	default:
		return nil, fmt.Errorf("unknown bus type %q", cfg.Type)
	}
}
