package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"santapot/internal/model"
)

const poolColumns = `id, name, total_amount, draw_date, status, entries, winner_uuid, winner_username, created_at`

func scanPool(row pgx.Row) (*model.PrizePool, error) {
	var p model.PrizePool
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.TotalAmount,
		&p.DrawDate,
		&p.Status,
		&p.Entries,
		&p.WinnerUUID,
		&p.WinnerUsername,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PotRepository handles the global pot aggregate and prize pools.
type PotRepository struct {
	pool *pgxpool.Pool
}

// NewPotRepository creates a new PotRepository instance.
func NewPotRepository(pool *pgxpool.Pool) *PotRepository {
	return &PotRepository{pool: pool}
}

// GetGlobalPot returns the singleton donation aggregate.
func (r *PotRepository) GetGlobalPot(ctx context.Context) (*model.GlobalPot, error) {
	const query = `SELECT total_amount, total_donations, total_users, updated_at FROM global_pot WHERE id = 1`

	var pot model.GlobalPot
	err := r.pool.QueryRow(ctx, query).Scan(&pot.TotalAmount, &pot.TotalDonations, &pot.TotalUsers, &pot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get global pot: %w", err)
	}
	return &pot, nil
}

// IncrementGlobalPot adds to the aggregate totals in place.
func (r *PotRepository) IncrementGlobalPot(ctx context.Context, amount decimal.Decimal, donations, users int64) (*model.GlobalPot, error) {
	const query = `
		INSERT INTO global_pot (id, total_amount, total_donations, total_users, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			total_amount = global_pot.total_amount + EXCLUDED.total_amount,
			total_donations = global_pot.total_donations + EXCLUDED.total_donations,
			total_users = global_pot.total_users + EXCLUDED.total_users,
			updated_at = NOW()
		RETURNING total_amount, total_donations, total_users, updated_at
	`

	var pot model.GlobalPot
	err := r.pool.QueryRow(ctx, query, amount, donations, users).Scan(
		&pot.TotalAmount, &pot.TotalDonations, &pot.TotalUsers, &pot.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update global pot: %w", err)
	}
	return &pot, nil
}

// ActivePool returns the active prize pool or ErrNoActivePool.
func (r *PotRepository) ActivePool(ctx context.Context) (*model.PrizePool, error) {
	query := `SELECT ` + poolColumns + ` FROM prize_pools WHERE status = 'active'`

	p, err := scanPool(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActivePool
		}
		return nil, fmt.Errorf("failed to get active pool: %w", err)
	}
	return p, nil
}

// EnsureActivePool creates an active pool unless one exists. The partial
// unique index on status makes concurrent callers converge on one pool.
// The returned bool reports whether this call created it.
func (r *PotRepository) EnsureActivePool(ctx context.Context, name string, drawDate time.Time, seed decimal.Decimal) (*model.PrizePool, bool, error) {
	query := `
		INSERT INTO prize_pools (id, name, total_amount, draw_date, status, entries, created_at)
		VALUES ($1, $2, $3, $4, 'active', 0, NOW())
		ON CONFLICT (status) WHERE status = 'active' DO NOTHING
		RETURNING ` + poolColumns

	p, err := scanPool(r.pool.QueryRow(ctx, query, uuid.NewString(), name, seed, drawDate))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create prize pool: %w", err)
	}

	p, err = r.ActivePool(ctx)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

// AddToActivePool adds amount to the active pool's total.
func (r *PotRepository) AddToActivePool(ctx context.Context, amount decimal.Decimal) error {
	const query = `UPDATE prize_pools SET total_amount = total_amount + $1 WHERE status = 'active'`

	result, err := r.pool.Exec(ctx, query, amount)
	if err != nil {
		return fmt.Errorf("failed to update prize pool: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNoActivePool
	}
	return nil
}

// GetEntry returns the user's entry in poolID or ErrRecordNotFound.
func (r *PotRepository) GetEntry(ctx context.Context, poolID, userUUID string) (*model.PrizeEntry, error) {
	const query = `
		SELECT pool_id, user_uuid, username, influence_score, entries, created_at, updated_at
		FROM prize_entries
		WHERE pool_id = $1 AND user_uuid = $2
	`

	var e model.PrizeEntry
	err := r.pool.QueryRow(ctx, query, poolID, userUUID).Scan(
		&e.PoolID,
		&e.UserUUID,
		&e.Username,
		&e.InfluenceScore,
		&e.Entries,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get prize entry: %w", err)
	}
	return &e, nil
}

// UpsertEntry inserts or replaces the user's entry and bumps the pool's
// participant count only when the entry is new.
func (r *PotRepository) UpsertEntry(ctx context.Context, e *model.PrizeEntry) (bool, error) {
	const upsert = `
		INSERT INTO prize_entries (pool_id, user_uuid, username, influence_score, entries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (pool_id, user_uuid) DO UPDATE SET
			username = EXCLUDED.username,
			influence_score = EXCLUDED.influence_score,
			entries = EXCLUDED.entries,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`
	const bump = `UPDATE prize_pools SET entries = entries + 1 WHERE id = $1`

	var inserted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, upsert, e.PoolID, e.UserUUID, e.Username, e.InfluenceScore, e.Entries).Scan(&inserted); err != nil {
			if mapped := mapPgError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("failed to upsert prize entry: %w", err)
		}
		if !inserted {
			return nil
		}
		if _, err := tx.Exec(ctx, bump, e.PoolID); err != nil {
			return fmt.Errorf("failed to update pool entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// ListEntries returns the entries of poolID, largest first.
func (r *PotRepository) ListEntries(ctx context.Context, poolID string, limit int) ([]*model.PrizeEntry, error) {
	const query = `
		SELECT pool_id, user_uuid, username, influence_score, entries, created_at, updated_at
		FROM prize_entries
		WHERE pool_id = $1
		ORDER BY entries DESC, created_at
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get prize entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.PrizeEntry
	for rows.Next() {
		var e model.PrizeEntry
		err := rows.Scan(
			&e.PoolID,
			&e.UserUUID,
			&e.Username,
			&e.InfluenceScore,
			&e.Entries,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prize entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prize entries: %w", err)
	}

	return entries, nil
}
