package bot

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"santapot/internal/config"
)

// allowChat decides whether an update from chat is served. Private chats are
// always served; group chats must be whitelisted.
func allowChat(cfg *config.BotConfig, chat *tele.Chat) bool {
	if chat == nil {
		return false
	}
	if chat.Type == tele.ChatPrivate {
		return true
	}
	return cfg.IsChatAllowed(chat.ID)
}

// WhitelistMiddleware ignores updates from group chats that are not whitelisted.
func WhitelistMiddleware(cfg *config.BotConfig) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || !allowChat(cfg, c.Chat()) {
				if chat := c.Chat(); chat != nil {
					log.Debug().
						Int64("chat_id", chat.ID).
						Msg("Ignoring command from non-whitelisted chat")
				}
				return nil
			}
			return next(c)
		}
	}
}

// PrivateOnlyMiddleware rejects commands sent outside a private chat.
func PrivateOnlyMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
				return c.Reply("🔒 Please send this command to me in a private chat.")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming messages.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received message")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ Something went wrong, please try again later.")
				}
			}()
			return next(c)
		}
	}
}
