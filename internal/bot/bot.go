// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"santapot/internal/config"
	"santapot/internal/handler"
	"santapot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.BotConfig

	// Handlers
	accountHandler    *handler.AccountHandler
	offerHandler      *handler.OfferHandler
	withdrawalHandler *handler.WithdrawalHandler
	potHandler        *handler.PotHandler
}

// New creates a new Bot instance over the wired services.
func New(cfg *config.BotConfig, svc *service.Services) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:               teleBot,
		cfg:               cfg,
		accountHandler:    handler.NewAccountHandler(svc),
		offerHandler:      handler.NewOfferHandler(svc),
		withdrawalHandler: handler.NewWithdrawalHandler(svc),
		potHandler:        handler.NewPotHandler(svc),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/me", b.accountHandler.HandleMe)
	b.bot.Handle("/daily", b.accountHandler.HandleDaily)
	b.bot.Handle("/progress", b.accountHandler.HandleProgress)
	b.bot.Handle("/share", b.accountHandler.HandleShare)
	b.bot.Handle("/link", b.accountHandler.HandleLink)

	b.bot.Handle("/offers", b.offerHandler.HandleOffers)
	b.bot.Handle("/offer", b.offerHandler.HandleOffer)
	b.bot.Handle("/done", b.offerHandler.HandleDone)

	// Payment details are private; withdrawals are only accepted in DMs.
	private := b.bot.Group()
	private.Use(PrivateOnlyMiddleware())
	private.Handle("/withdraw", b.withdrawalHandler.HandleWithdraw)

	b.bot.Handle("/pot", b.potHandler.HandlePot)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("bot", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
