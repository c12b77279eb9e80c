// Package pubsub delivers live change notifications for accounts, the global
// pot and the active prize pool. The Redis hub fans out across processes; the
// local hub serves single-process deployments and tests.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Topics published by the services.
const (
	TopicPot   = "pot"
	TopicPool  = "pool"
	TopicStats = "stats"
)

// UserTopic is the topic carrying one account's updates.
func UserTopic(uuid string) string {
	return "user." + uuid
}

// Hub publishes JSON payloads to topics and streams them to subscribers.
type Hub interface {
	Publish(ctx context.Context, topic string, v any) error
	// Subscribe returns a channel of raw JSON payloads and a cancel func.
	// The channel is closed after cancel is called or ctx is done.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error)
	Close() error
}

const subscriberBuffer = 16

// LocalHub is an in-process Hub. Slow subscribers drop messages rather than
// block publishers.
type LocalHub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

// NewLocalHub creates an empty LocalHub.
func NewLocalHub() *LocalHub {
	return &LocalHub{subs: make(map[string]map[chan []byte]struct{})}
}

// Publish encodes v and delivers it to current subscribers of topic.
func (h *LocalHub) Publish(_ context.Context, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", topic, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[topic] {
		select {
		case ch <- data:
		default:
			log.Warn().Str("topic", topic).Msg("Subscriber buffer full, dropping message")
		}
	}
	return nil
}

// Subscribe registers a subscriber on topic.
func (h *LocalHub) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, fmt.Errorf("hub closed")
	}

	ch := make(chan []byte, subscriberBuffer)
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[chan []byte]struct{})
	}
	h.subs[topic][ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[topic][ch]; ok {
				delete(h.subs[topic], ch)
				if len(h.subs[topic]) == 0 {
					delete(h.subs, topic)
				}
				close(ch)
			}
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

// Close drops every subscriber.
func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, topic)
	}
	h.closed = true
	return nil
}
