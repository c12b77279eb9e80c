package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// schema is applied in order on every start. Each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		uuid                UUID PRIMARY KEY,
		external_id         TEXT NOT NULL UNIQUE,
		email               TEXT NOT NULL DEFAULT '',
		username            TEXT,
		referral_code       CHAR(8) NOT NULL UNIQUE,
		earnings            NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (earnings >= 0),
		total_points        BIGINT NOT NULL DEFAULT 0 CHECK (total_points >= 0),
		total_clicks        BIGINT NOT NULL DEFAULT 0 CHECK (total_clicks >= 0),
		total_referrals     BIGINT NOT NULL DEFAULT 0 CHECK (total_referrals >= 0),
		completed_offers    BIGINT NOT NULL DEFAULT 0 CHECK (completed_offers >= 0),
		social_shares       BIGINT NOT NULL DEFAULT 0 CHECK (social_shares >= 0),
		offer_clicks        BIGINT NOT NULL DEFAULT 0 CHECK (offer_clicks >= 0),
		total_donated       NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (total_donated >= 0),
		influence_score     NUMERIC(24,8) NOT NULL DEFAULT 0,
		login_streak        BIGINT NOT NULL DEFAULT 0,
		last_login_date     DATE,
		withdrawal_eligible BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS clicks (
		id            UUID PRIMARY KEY,
		user_uuid     UUID NOT NULL REFERENCES users(uuid),
		referral_code CHAR(8) NOT NULL,
		ip_address    TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clicks_user ON clicks(user_uuid)`,
	`CREATE TABLE IF NOT EXISTS referrals (
		id                 UUID PRIMARY KEY,
		referrer_uuid      UUID NOT NULL REFERENCES users(uuid),
		referred_uuid      UUID NOT NULL REFERENCES users(uuid),
		referral_code_used CHAR(8) NOT NULL,
		status             TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (referrer_uuid, referred_uuid)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_referrals_referred ON referrals(referred_uuid)`,
	`CREATE TABLE IF NOT EXISTS donations (
		id                UUID PRIMARY KEY,
		user_uuid         UUID NOT NULL REFERENCES users(uuid),
		amount            NUMERIC(20,8) NOT NULL CHECK (amount > 0),
		currency          TEXT NOT NULL,
		network           TEXT NOT NULL,
		transaction_hash  TEXT,
		payment_intent_id TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`DROP INDEX IF EXISTS idx_donations_tx`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_donations_tx_hash ON donations(network, lower(transaction_hash)) WHERE transaction_hash IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_donations_intent ON donations(payment_intent_id) WHERE payment_intent_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_donations_user ON donations(user_uuid)`,
	`CREATE TABLE IF NOT EXISTS offer_completions (
		id         UUID PRIMARY KEY,
		user_uuid  UUID NOT NULL REFERENCES users(uuid),
		offer_id   TEXT NOT NULL,
		reward     NUMERIC(20,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_uuid, offer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_logins (
		id         UUID PRIMARY KEY,
		user_uuid  UUID NOT NULL REFERENCES users(uuid),
		login_date DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_uuid, login_date)
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id              UUID PRIMARY KEY,
		user_uuid       UUID NOT NULL REFERENCES users(uuid),
		amount          NUMERIC(20,2) NOT NULL CHECK (amount > 0),
		payment_method  TEXT NOT NULL,
		payment_details TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at    TIMESTAMPTZ,
		admin_notes     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_user_status ON withdrawals(user_uuid, status)`,
	`CREATE TABLE IF NOT EXISTS global_pot (
		id              SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		total_amount    NUMERIC(20,8) NOT NULL DEFAULT 0,
		total_donations BIGINT NOT NULL DEFAULT 0,
		total_users     BIGINT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO global_pot (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS prize_pools (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		total_amount    NUMERIC(20,8) NOT NULL DEFAULT 0,
		draw_date       TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL DEFAULT 'active',
		entries         BIGINT NOT NULL DEFAULT 0,
		winner_uuid     UUID,
		winner_username TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_prize_pools_one_active ON prize_pools(status) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS prize_entries (
		pool_id         UUID NOT NULL REFERENCES prize_pools(id),
		user_uuid       UUID NOT NULL REFERENCES users(uuid),
		username        TEXT NOT NULL,
		influence_score NUMERIC(24,8) NOT NULL,
		entries         BIGINT NOT NULL CHECK (entries >= 1),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (pool_id, user_uuid)
	)`,
}

// Migrate applies the ledger schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	log.Debug().Int("statements", len(schema)).Msg("Schema applied")
	return nil
}
