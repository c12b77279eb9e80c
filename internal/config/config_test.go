package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"santapot/internal/rewards"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_JWT_SECRET", testJWTSecret)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, testJWTSecret, cfg.Server.JWTSecret)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "freeze", cfg.PrizePool.TicketPolicy)
	assert.Equal(t, 5*time.Minute, cfg.Donations.WebhookTolerance)
	assert.Equal(t, 10*time.Second, cfg.Bot.PollTimeout)
	assert.Equal(t, time.UTC, cfg.Location())

	// The configured defaults match the built-in schedule.
	want := rewards.DefaultPolicy()
	got := cfg.Rewards.Policy()
	assert.True(t, want.SignupBonus.Equal(got.SignupBonus))
	assert.True(t, want.MinWithdrawal.Equal(got.MinWithdrawal))
	assert.True(t, want.Thresholds.Donated.Equal(got.Thresholds.Donated))
	assert.Equal(t, want.Thresholds.AccountAge, got.Thresholds.AccountAge)
	assert.Equal(t, want.Influence, got.Influence)
	assert.Equal(t, want.TicketDivisor, got.TicketDivisor)

	catalog := cfg.Catalog()
	require.Len(t, catalog, 4)
	assert.Equal(t, "affiliate_hostinger", catalog[0].ID)
	assert.True(t, decimal.NewFromInt(15).Equal(catalog[0].Reward))
	assert.False(t, catalog[3].Active)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: memory
prize_pool:
  ticket_policy: track
rewards:
  min_withdrawal: 30
donations:
  networks:
    base:
      rpc_url: https://base.example
      chain_id: 8453
      receiver: "0x000000000000000000000000000000000000dEaD"
bot:
  allowed_chats: [-100123]
offers:
  - id: only
    title: Only offer
    reward: 2.5
    active: true
timezone: America/New_York
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("REWARDS_TICKET_DIVISOR", "20")
	t.Setenv("SERVER_JWT_SECRET", testJWTSecret)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "track", cfg.PrizePool.TicketPolicy)
	assert.Equal(t, int64(20), cfg.Rewards.TicketDivisor)
	assert.True(t, decimal.NewFromInt(30).Equal(cfg.Rewards.Policy().MinWithdrawal))
	assert.Equal(t, int64(8453), cfg.Donations.Networks["base"].ChainID)
	assert.Equal(t, "America/New_York", cfg.Location().String())

	require.Len(t, cfg.Catalog(), 1)
	assert.True(t, decimal.RequireFromString("2.5").Equal(cfg.Catalog()[0].Reward))

	assert.True(t, cfg.Bot.IsChatAllowed(-100123))
	assert.False(t, cfg.Bot.IsChatAllowed(-100999))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{JWTSecret: testJWTSecret},
			Store:     StoreConfig{Driver: "memory"},
			PrizePool: PrizePoolConfig{TicketPolicy: "freeze"},
			Rewards:   RewardsConfig{MinWithdrawal: 25, TicketDivisor: 10},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty jwt secret", func(c *Config) { c.Server.JWTSecret = "" }},
		{"short jwt secret", func(c *Config) { c.Server.JWTSecret = "secret" }},
		{"store driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"ticket policy", func(c *Config) { c.PrizePool.TicketPolicy = "grow" }},
		{"ticket divisor", func(c *Config) { c.Rewards.TicketDivisor = 0 }},
		{"min withdrawal", func(c *Config) { c.Rewards.MinWithdrawal = 0 }},
		{"negative points", func(c *Config) { c.Rewards.ClickPoints = -1 }},
		{"offer without id", func(c *Config) { c.Offers = []OfferConfig{{Title: "x"}} }},
		{"duplicate offer", func(c *Config) { c.Offers = []OfferConfig{{ID: "a"}, {ID: "a"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("SERVER_JWT_SECRET", "")
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestIsChatAllowedEmptyAllowsAll(t *testing.T) {
	var b BotConfig
	assert.True(t, b.IsChatAllowed(42))
}
