package events

import (
	"context"
	"log/slog"
	"time"
)

// Publisher is the slice of a Redis client the bus needs for cross-pod
// fan-out. infra.GoRedisAdapter satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message []byte) error
}

// DefaultChannel is the Redis channel gateway events are published on.
const DefaultChannel = "fabric:events"

// RedisBus wraps an in-process Bus and mirrors every event onto a Redis
// channel so other pods (and the dashboard gateway) see it. Redis
// publish is best-effort: local delivery never depends on it.
type RedisBus struct {
	*Bus
	publisher Publisher
	channel   string
	logger    *slog.Logger
}

// NewRedisBus creates a bus that also publishes to Redis. publisher may
// be nil, in which case it behaves exactly like the in-process bus.
func NewRedisBus(publisher Publisher, channel string, logger *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{
		Bus:       NewBus(),
		publisher: publisher,
		channel:   channel,
		logger:    logger,
	}
}

// Emit publishes locally, then mirrors to Redis.
func (rb *RedisBus) Emit(eventType, subject string, data map[string]interface{}) {
	event := NewEvent(eventType, subject, data)
	rb.Publish(event)

	if rb.publisher == nil {
		return
	}

	payload, err := event.JSON()
	if err != nil {
		rb.logger.Warn("event marshal failed", "type", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rb.publisher.Publish(ctx, rb.channel, payload); err != nil {
		rb.logger.Debug("redis event publish failed", "type", eventType, "error", err)
	}
}
