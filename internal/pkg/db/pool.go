// Package db opens the ledger database and keeps its schema current.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"santapot/internal/config"
)

const (
	applicationName   = "santapot"
	healthCheckPeriod = 30 * time.Second
	healthTimeout     = 2 * time.Second
)

// Ledger is the connection pool behind the repositories. The schema has
// been applied by the time Open returns it.
type Ledger struct {
	*pgxpool.Pool
}

// Open connects to the ledger database, verifies it answers and applies
// the schema.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Ledger, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	tune(poolConfig, cfg)

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Opening ledger database")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Msg("Ledger database ready")
	return &Ledger{Pool: pool}, nil
}

// tune sizes the pool for the accrual workload. Every accrual holds one
// connection for a short transaction, so a quarter of the pool stays warm.
func tune(pc *pgxpool.Config, cfg *config.DatabaseConfig) {
	if cfg.PoolSize > 0 {
		pc.MaxConns = int32(cfg.PoolSize)
	}
	pc.MinConns = max(pc.MaxConns/4, 1)

	pc.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, 10*time.Second)
	pc.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, time.Hour)
	pc.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, 30*time.Minute)
	pc.HealthCheckPeriod = healthCheckPeriod
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Close releases every connection.
func (l *Ledger) Close() {
	if l.Pool != nil {
		l.Pool.Close()
		log.Info().Msg("Ledger database closed")
	}
}

// HealthCheck reports whether the database answers and the users table
// exists. It backs GET /healthz.
func (l *Ledger) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var ready bool
	if err := l.Pool.QueryRow(ctx, `SELECT to_regclass('users') IS NOT NULL`).Scan(&ready); err != nil {
		return fmt.Errorf("ledger database unreachable: %w", err)
	}
	if !ready {
		return fmt.Errorf("ledger schema not applied")
	}
	return nil
}
