package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisHub is a Hub backed by Redis PUBLISH/SUBSCRIBE.
type RedisHub struct {
	client *redis.Client
	prefix string
}

// NewRedisHub wraps an existing client. Channels are named prefix:topic.
func NewRedisHub(client *redis.Client, prefix string) *RedisHub {
	return &RedisHub{client: client, prefix: prefix}
}

func (h *RedisHub) channel(topic string) string {
	if h.prefix == "" {
		return topic
	}
	return h.prefix + ":" + topic
}

// Publish encodes v and publishes it to topic.
func (h *RedisHub) Publish(ctx context.Context, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", topic, err)
	}
	if err := h.client.Publish(ctx, h.channel(topic), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a Redis subscription on topic.
func (h *RedisHub) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	sub := h.client.Subscribe(ctx, h.channel(topic))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	out := make(chan []byte, subscriberBuffer)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					log.Warn().Str("topic", topic).Msg("Subscriber buffer full, dropping message")
				}
			}
		}
	}()

	return out, cancel, nil
}

// Close closes the Redis client.
func (h *RedisHub) Close() error {
	return h.client.Close()
}
