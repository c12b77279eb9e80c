// Package main is the entry point for the santapot service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/api"
	"santapot/internal/bot"
	"santapot/internal/chain"
	"santapot/internal/config"
	"santapot/internal/pkg/db"
	"santapot/internal/pkg/logger"
	"santapot/internal/pubsub"
	"santapot/internal/repository"
	"santapot/internal/repository/memory"
	"santapot/internal/scheduler"
	"santapot/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCloser, err := logger.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}
	defer logCloser.Close()

	log.Info().Str("store", cfg.Store.Driver).Msg("Configuration loaded successfully")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Ledger store
	ledger, health, closeStore := openLedger(ctx, cfg)
	defer closeStore()

	// Live update hub
	hub := openHub(ctx, cfg.Redis)
	defer hub.Close()

	// On-chain donation verification
	verifier, err := chain.NewVerifier(ctx, cfg.Donations.Networks)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure donation networks")
	}
	networks := make(map[string]string)
	for _, name := range verifier.Networks() {
		networks[name] = verifier.Receiver(name)
	}

	// Initialize services
	svc := service.New(ledger, service.Settings{
		Policy:       cfg.Rewards.Policy(),
		TicketPolicy: service.TicketPolicy(cfg.PrizePool.TicketPolicy),
		Pool: service.PoolDefaults{
			Name:      cfg.PrizePool.DefaultName,
			DrawAfter: cfg.PrizePool.DrawAfter,
			Seed:      decimal.NewFromFloat(cfg.PrizePool.SeedAmount),
		},
		Location:         cfg.Location(),
		PublicURL:        cfg.Server.PublicURL,
		Offers:           cfg.Catalog(),
		WebhookSecret:    cfg.Donations.WebhookSecret,
		WebhookTolerance: cfg.Donations.WebhookTolerance,
	}, hub, verifier)

	if _, err := svc.PrizePool.EnsureActivePool(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure active prize pool")
	}

	// Scheduled jobs
	jobs := scheduler.New(scheduler.Config{
		PoolSchedule:  cfg.PrizePool.BootstrapSchedule,
		StatsSchedule: cfg.PrizePool.StatsSchedule,
	}, svc.PrizePool, svc.Stats)
	if err := jobs.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(svc, hub, api.Options{
		PublicURL:        cfg.Server.PublicURL,
		JWTSecret:        cfg.Server.JWTSecret,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		DonationNetworks: networks,
		HealthCheck:      health,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build HTTP router")
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Telegram bot (optional)
	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(&cfg.Bot, svc)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go telegramBot.Start()
	} else {
		log.Info().Msg("Bot token not set, Telegram front end disabled")
	}

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if telegramBot != nil {
		telegramBot.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	select {
	case <-jobs.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("Scheduled jobs still running at shutdown")
	}
	log.Info().Msg("Stopped gracefully")
}

// openLedger connects the configured store. The returned closer releases it.
func openLedger(ctx context.Context, cfg *config.Config) (service.Ledger, func(context.Context) error, func()) {
	if cfg.Store.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		st := memory.New()
		return service.Ledger{Users: st, Events: st, Withdrawals: st, Pots: st}, nil, func() {}
	}

	pool, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	ledger := service.Ledger{
		Users:       repository.NewUserRepository(pool.Pool),
		Events:      repository.NewEventRepository(pool.Pool),
		Withdrawals: repository.NewWithdrawalRepository(pool.Pool),
		Pots:        repository.NewPotRepository(pool.Pool),
	}
	return ledger, pool.HealthCheck, pool.Close
}

// openHub returns a Redis-backed hub when configured, else an in-process one.
func openHub(ctx context.Context, cfg config.RedisConfig) pubsub.Hub {
	if cfg.Addr == "" {
		log.Info().Msg("Redis not configured, using in-process live updates")
		return pubsub.NewLocalHub()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("Failed to connect to Redis")
	}
	log.Info().Str("addr", cfg.Addr).Msg("Redis live updates enabled")
	return pubsub.NewRedisHub(client, cfg.Prefix)
}
