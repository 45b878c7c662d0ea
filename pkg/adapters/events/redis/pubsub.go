package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// PubSubEventBus implements ports.EventBus using Redis pub/sub. Each
// topic maps to one Redis channel, so an event published by one service
// instance reaches subscribers on every instance.
type PubSubEventBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPubSubEventBus creates a new Redis pub/sub event bus.
func NewPubSubEventBus(client *redis.Client, logger *zap.Logger) *PubSubEventBus {
	return &PubSubEventBus{
		client: client,
		logger: logger,
	}
}

// Publish publishes an event to a topic (ports.EventBus interface).
func (e *PubSubEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := e.client.Publish(ctx, getChannelKey(topic), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("topic", topic))

	return nil
}

// Subscribe subscribes to events on a topic (ports.EventBus interface).
// The handler runs on a dedicated goroutine until Unsubscribe is called
// or ctx is cancelled.
func (e *PubSubEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) (ports.Subscription, error) {
	pubsub := e.client.Subscribe(ctx, getChannelKey(topic))

	// Force the subscription onto the wire before returning so events
	// published immediately after Subscribe are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	sub := &pubSubSubscription{pubsub: pubsub}
	go e.readChannel(ctx, topic, pubsub, handler)

	e.logger.Debug("subscribed to topic", zap.String("topic", topic))

	return sub, nil
}

// readChannel delivers messages from a pub/sub channel to the handler.
func (e *PubSubEventBus) readChannel(ctx context.Context, topic string, pubsub *redis.PubSub, handler ports.EventHandler) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				e.logger.Error("failed to unmarshal event",
					zap.String("topic", topic),
					zap.Error(err))
				continue
			}

			if err := handler(ctx, event); err != nil {
				e.logger.Error("handler error",
					zap.String("topic", topic),
					zap.String("event_id", event.ID),
					zap.Error(err))
			}
		}
	}
}

// Close closes the event bus. The Redis client is closed by the caller.
func (e *PubSubEventBus) Close() error {
	return nil
}

type pubSubSubscription struct {
	pubsub *redis.PubSub
}

// Unsubscribe stops delivery and releases the channel (ports.Subscription interface).
func (s *pubSubSubscription) Unsubscribe() error {
	return s.pubsub.Close()
}

// getChannelKey returns the Redis channel name for a topic.
func getChannelKey(topic string) string {
	return fmt.Sprintf("lucky:events:%s", topic)
}
