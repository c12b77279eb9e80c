package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"santapot/internal/model"
	"santapot/internal/pubsub"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

// publish delivers v on topic. Live updates are best effort: failures are
// logged and never fail the operation that produced them.
func publish(ctx context.Context, pub Publisher, topic string, v any) {
	if err := pub.Publish(ctx, topic, v); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish live update")
	}
}

func publishUser(ctx context.Context, pub Publisher, user *model.UserAccount) {
	publish(ctx, pub, pubsub.UserTopic(user.UUID), user)
}
