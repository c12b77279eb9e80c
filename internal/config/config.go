// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"santapot/internal/model"
	"santapot/internal/rewards"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Bot       BotConfig       `mapstructure:"bot"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	PrizePool PrizePoolConfig `mapstructure:"prize_pool"`
	Donations DonationsConfig `mapstructure:"donations"`
	Offers    []OfferConfig   `mapstructure:"offers"`
	Timezone  string          `mapstructure:"timezone"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	PublicURL      string        `mapstructure:"public_url"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// BotConfig holds Telegram bot configuration. An empty token disables the bot.
type BotConfig struct {
	Token string `mapstructure:"token"`
	// AllowedChats restricts group chats. Private chats are always served.
	AllowedChats []int64       `mapstructure:"allowed_chats"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// IsChatAllowed checks if a group chat may use the bot. An empty list allows all.
func (b *BotConfig) IsChatAllowed(chatID int64) bool {
	if len(b.AllowedChats) == 0 {
		return true
	}
	for _, id := range b.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

// StoreConfig selects the ledger store backend: "postgres" or "memory".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the pub/sub connection. An empty address selects the
// in-process hub.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RewardsConfig holds the reward schedule and eligibility thresholds.
type RewardsConfig struct {
	SignupBonus           float64           `mapstructure:"signup_bonus"`
	ClickEarnings         float64           `mapstructure:"click_earnings"`
	ClickPoints           int64             `mapstructure:"click_points"`
	ReferralEarnings      float64           `mapstructure:"referral_earnings"`
	ReferralPoints        int64             `mapstructure:"referral_points"`
	DonationPointsPerUnit int64             `mapstructure:"donation_points_per_unit"`
	OfferPoints           int64             `mapstructure:"offer_points"`
	ShareEarnings         float64           `mapstructure:"share_earnings"`
	SharePoints           int64             `mapstructure:"share_points"`
	OfferClickPoints      int64             `mapstructure:"offer_click_points"`
	DailyLoginPoints      int64             `mapstructure:"daily_login_points"`
	InfluenceWeights      InfluenceConfig   `mapstructure:"influence_weights"`
	MinWithdrawal         float64           `mapstructure:"min_withdrawal"`
	TicketDivisor         int64             `mapstructure:"ticket_divisor"`
	Eligibility           EligibilityConfig `mapstructure:"eligibility"`
}

// InfluenceConfig holds the influence score weights.
type InfluenceConfig struct {
	Donated   int64 `mapstructure:"donated"`
	Referrals int64 `mapstructure:"referrals"`
	Clicks    int64 `mapstructure:"clicks"`
}

// EligibilityConfig holds the withdrawal eligibility thresholds.
type EligibilityConfig struct {
	MinDonated         float64 `mapstructure:"min_donated"`
	MinReferrals       int64   `mapstructure:"min_referrals"`
	MinClicks          int64   `mapstructure:"min_clicks"`
	MinCompletedOffers int64   `mapstructure:"min_completed_offers"`
	MinSocialShares    int64   `mapstructure:"min_social_shares"`
	MinPoints          int64   `mapstructure:"min_points"`
	MinAccountAgeDays  int     `mapstructure:"min_account_age_days"`
}

// PrizePoolConfig holds the defaults used when a new active pool is created.
type PrizePoolConfig struct {
	DefaultName       string        `mapstructure:"default_name"`
	DrawAfter         time.Duration `mapstructure:"draw_after"`
	SeedAmount        float64       `mapstructure:"seed_amount"`
	TicketPolicy      string        `mapstructure:"ticket_policy"`
	BootstrapSchedule string        `mapstructure:"bootstrap_schedule"`
	StatsSchedule     string        `mapstructure:"stats_schedule"`
}

// DonationsConfig holds payment gateway and chain settings.
type DonationsConfig struct {
	WebhookSecret    string                   `mapstructure:"webhook_secret"`
	WebhookTolerance time.Duration            `mapstructure:"webhook_tolerance"`
	Networks         map[string]NetworkConfig `mapstructure:"networks"`
}

// NetworkConfig describes one EVM network donations are accepted on.
// NativeSymbol and Tokens extend the built-in registry for well-known
// networks; keys of Tokens are currency symbols.
type NetworkConfig struct {
	RPCURL       string                 `mapstructure:"rpc_url"`
	ChainID      int64                  `mapstructure:"chain_id"`
	Receiver     string                 `mapstructure:"receiver"`
	NativeSymbol string                 `mapstructure:"native_symbol"`
	Tokens       map[string]TokenConfig `mapstructure:"tokens"`
}

// TokenConfig is an ERC-20 contract accepted for donations.
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Decimals int32  `mapstructure:"decimals"`
}

// OfferConfig is one offer catalog entry.
type OfferConfig struct {
	ID            string  `mapstructure:"id"`
	Title         string  `mapstructure:"title"`
	Description   string  `mapstructure:"description"`
	Category      string  `mapstructure:"category"`
	Reward        float64 `mapstructure:"reward"`
	Link          string  `mapstructure:"link"`
	EstimatedTime string  `mapstructure:"estimated_time"`
	Active        bool    `mapstructure:"active"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Policy converts the rewards section into the immutable engine policy.
func (r *RewardsConfig) Policy() rewards.Policy {
	return rewards.Policy{
		SignupBonus:           decimal.NewFromFloat(r.SignupBonus),
		ClickEarnings:         decimal.NewFromFloat(r.ClickEarnings),
		ClickPoints:           r.ClickPoints,
		ReferralEarnings:      decimal.NewFromFloat(r.ReferralEarnings),
		ReferralPoints:        r.ReferralPoints,
		DonationPointsPerUnit: r.DonationPointsPerUnit,
		OfferPoints:           r.OfferPoints,
		ShareEarnings:         decimal.NewFromFloat(r.ShareEarnings),
		SharePoints:           r.SharePoints,
		OfferClickPoints:      r.OfferClickPoints,
		DailyLoginPoints:      r.DailyLoginPoints,
		Influence: rewards.InfluenceWeights{
			Donated:   r.InfluenceWeights.Donated,
			Referrals: r.InfluenceWeights.Referrals,
			Clicks:    r.InfluenceWeights.Clicks,
		},
		Thresholds: rewards.Thresholds{
			Donated:         decimal.NewFromFloat(r.Eligibility.MinDonated),
			Referrals:       r.Eligibility.MinReferrals,
			Clicks:          r.Eligibility.MinClicks,
			CompletedOffers: r.Eligibility.MinCompletedOffers,
			SocialShares:    r.Eligibility.MinSocialShares,
			Points:          r.Eligibility.MinPoints,
			AccountAge:      time.Duration(r.Eligibility.MinAccountAgeDays) * 24 * time.Hour,
		},
		MinWithdrawal: decimal.NewFromFloat(r.MinWithdrawal),
		TicketDivisor: r.TicketDivisor,
	}
}

// Catalog converts the configured offers into model offers.
func (c *Config) Catalog() []model.Offer {
	offers := make([]model.Offer, 0, len(c.Offers))
	for _, o := range c.Offers {
		offers = append(offers, model.Offer{
			ID:            o.ID,
			Title:         o.Title,
			Description:   o.Description,
			Category:      o.Category,
			Reward:        decimal.NewFromFloat(o.Reward),
			Link:          o.Link,
			EstimatedTime: o.EstimatedTime,
			Active:        o.Active,
		})
	}
	return offers
}

// Location returns the calendar used for daily-login dates.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory and loads .env when present.
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables still win.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, REWARDS_MIN_WITHDRAWAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MinJWTSecretLength is the shortest accepted HS256 signing key.
const MinJWTSecretLength = 32

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	if len(c.Server.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("server.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid store driver %q", c.Store.Driver)
	}
	switch c.PrizePool.TicketPolicy {
	case "freeze", "track":
	default:
		return fmt.Errorf("invalid prize pool ticket policy %q", c.PrizePool.TicketPolicy)
	}
	if err := c.Rewards.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid rewards config: %w", err)
	}
	seen := make(map[string]bool, len(c.Offers))
	for _, o := range c.Offers {
		if o.ID == "" {
			return fmt.Errorf("offer without id")
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate offer id %q", o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("bot.poll_timeout", "10s")

	// Secrets have no usable default. Registering the keys lets
	// AutomaticEnv supply them, e.g. SERVER_JWT_SECRET.
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("bot.token", "")
	v.SetDefault("database.password", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("donations.webhook_secret", "")

	v.SetDefault("store.driver", "postgres")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "santapot")
	v.SetDefault("database.name", "santapot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.prefix", "santapot")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	// Reward schedule defaults
	v.SetDefault("rewards.signup_bonus", 100)
	v.SetDefault("rewards.click_earnings", 2)
	v.SetDefault("rewards.click_points", 1)
	v.SetDefault("rewards.referral_earnings", 50)
	v.SetDefault("rewards.referral_points", 50)
	v.SetDefault("rewards.donation_points_per_unit", 10)
	v.SetDefault("rewards.offer_points", 5)
	v.SetDefault("rewards.share_earnings", 2)
	v.SetDefault("rewards.share_points", 2)
	v.SetDefault("rewards.offer_click_points", 1)
	v.SetDefault("rewards.daily_login_points", 1)
	v.SetDefault("rewards.influence_weights.donated", 10)
	v.SetDefault("rewards.influence_weights.referrals", 5)
	v.SetDefault("rewards.influence_weights.clicks", 1)
	v.SetDefault("rewards.min_withdrawal", 25)
	v.SetDefault("rewards.ticket_divisor", 10)
	v.SetDefault("rewards.eligibility.min_donated", 1)
	v.SetDefault("rewards.eligibility.min_referrals", 3)
	v.SetDefault("rewards.eligibility.min_clicks", 50)
	v.SetDefault("rewards.eligibility.min_completed_offers", 5)
	v.SetDefault("rewards.eligibility.min_social_shares", 10)
	v.SetDefault("rewards.eligibility.min_points", 100)
	v.SetDefault("rewards.eligibility.min_account_age_days", 7)

	// Prize pool defaults
	v.SetDefault("prize_pool.default_name", "Holiday Prize Pool")
	v.SetDefault("prize_pool.draw_after", "720h")
	v.SetDefault("prize_pool.seed_amount", 100)
	v.SetDefault("prize_pool.ticket_policy", "freeze")
	v.SetDefault("prize_pool.bootstrap_schedule", "@hourly")
	v.SetDefault("prize_pool.stats_schedule", "@every 1m")

	v.SetDefault("donations.webhook_tolerance", "5m")

	v.SetDefault("offers", defaultOffers())

	v.SetDefault("timezone", "UTC")
}

// defaultOffers is the sample catalog served when no offers are configured.
func defaultOffers() []map[string]any {
	return []map[string]any{
		{
			"id":             "affiliate_hostinger",
			"title":          "Sign up for Hostinger",
			"description":    "Create a hosting account through our partner link",
			"category":       "affiliate",
			"reward":         15,
			"link":           "https://www.hostinger.com",
			"estimated_time": "10 min",
			"active":         true,
		},
		{
			"id":             "survey_holiday_habits",
			"title":          "Holiday habits survey",
			"description":    "Answer a short survey about your holiday plans",
			"category":       "survey",
			"reward":         5,
			"link":           "https://example.com/survey",
			"estimated_time": "5 min",
			"active":         true,
		},
		{
			"id":             "app_install_wallet",
			"title":          "Install a crypto wallet",
			"description":    "Install the wallet app and finish onboarding",
			"category":       "app",
			"reward":         10,
			"link":           "https://example.com/wallet",
			"estimated_time": "3 min",
			"active":         true,
		},
		{
			"id":             "retired_newsletter",
			"title":          "Newsletter signup",
			"description":    "Subscribe to the partner newsletter",
			"category":       "affiliate",
			"reward":         1,
			"link":           "https://example.com/newsletter",
			"estimated_time": "1 min",
			"active":         false,
		},
	}
}
