package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"santapot/internal/pubsub"
)

const keepAliveInterval = 25 * time.Second

// handleMeStream streams the caller's account updates as server-sent events.
func (s *Server) handleMeStream(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	s.stream(c, pubsub.UserTopic(user.UUID))
}

// handlePotStream streams global pot, prize pool and live stats updates.
func (s *Server) handlePotStream(c *gin.Context) {
	s.stream(c, pubsub.TopicPot, pubsub.TopicPool, pubsub.TopicStats)
}

type streamEvent struct {
	topic string
	data  []byte
}

func (s *Server) stream(c *gin.Context, topics ...string) {
	if s.hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, apiError{Code: "unavailable", Message: "Live updates are disabled"})
		return
	}

	ctx := c.Request.Context()
	events := make(chan streamEvent)
	for _, topic := range topics {
		ch, cancel, err := s.hub.Subscribe(ctx, topic)
		if err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe")
			writeError(c, err)
			return
		}
		defer cancel()
		go func(topic string, ch <-chan []byte) {
			for msg := range ch {
				select {
				case events <- streamEvent{topic: topic, data: msg}:
				case <-ctx.Done():
					return
				}
			}
		}(topic, ch)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			c.SSEvent(ev.topic, string(ev.data))
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		case <-ctx.Done():
			return false
		}
	})
}
