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
	"santapot/internal/rewards"
)

const userColumns = `uuid, external_id, email, username, referral_code, earnings, total_points,
	total_clicks, total_referrals, completed_offers, social_shares, offer_clicks,
	total_donated, influence_score, login_streak, last_login_date, withdrawal_eligible,
	created_at, updated_at`

func scanUser(row pgx.Row) (*model.UserAccount, error) {
	var user model.UserAccount
	err := row.Scan(
		&user.UUID,
		&user.ExternalID,
		&user.Email,
		&user.Username,
		&user.ReferralCode,
		&user.Earnings,
		&user.TotalPoints,
		&user.TotalClicks,
		&user.TotalReferrals,
		&user.CompletedOffers,
		&user.SocialShares,
		&user.OfferClicks,
		&user.TotalDonated,
		&user.InfluenceScore,
		&user.LoginStreak,
		&user.LastLoginDate,
		&user.WithdrawalEligible,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserRepository handles user account persistence and the atomic accrual
// primitives.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new account. UUID and ReferralCode must already be set.
// Returns ErrDuplicateRecord if the external id or referral code is taken.
func (r *UserRepository) Create(ctx context.Context, user *model.UserAccount) (*model.UserAccount, error) {
	query := `
		INSERT INTO users (uuid, external_id, email, username, referral_code, earnings,
			influence_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
		RETURNING ` + userColumns

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	created, err := scanUser(r.pool.QueryRow(ctx, query,
		user.UUID, user.ExternalID, user.Email, user.Username, user.ReferralCode, user.Earnings, createdAt,
	))
	if err != nil {
		if mapped := mapPgError(err); errors.Is(mapped, ErrDuplicateRecord) {
			return nil, ErrDuplicateRecord
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*model.UserAccount, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return user, nil
}

// GetByUUID retrieves an account by its internal uuid.
// Returns ErrRecordNotFound if the account does not exist.
func (r *UserRepository) GetByUUID(ctx context.Context, id string) (*model.UserAccount, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordNotFound
	}
	return r.getBy(ctx, "uuid", id)
}

// GetByExternalID retrieves an account by its identity-provider key.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*model.UserAccount, error) {
	return r.getBy(ctx, "external_id", externalID)
}

// GetByReferralCode retrieves an account by its referral code.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*model.UserAccount, error) {
	return r.getBy(ctx, "referral_code", code)
}

// Accrue adds d to the account counters in a single UPDATE, recomputing the
// influence score from the updated totals, and appends rec in the same
// transaction. rec may be nil for events without an audit record.
// Returns ErrRecordNotFound if the account does not exist, in which case
// nothing is written.
func (r *UserRepository) Accrue(ctx context.Context, id string, d rewards.Delta, w rewards.InfluenceWeights, rec model.EventRecord) (*model.UserAccount, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRecordNotFound
	}

	query := `
		UPDATE users SET
			earnings = earnings + $2,
			total_points = total_points + $3,
			total_clicks = total_clicks + $4,
			total_referrals = total_referrals + $5,
			completed_offers = completed_offers + $6,
			social_shares = social_shares + $7,
			offer_clicks = offer_clicks + $8,
			total_donated = total_donated + $9,
			influence_score = (total_donated + $9) * $10
				+ (total_referrals + $5) * $11
				+ (total_clicks + $4) * $12,
			updated_at = NOW()
		WHERE uuid = $1
		RETURNING ` + userColumns

	var user *model.UserAccount
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, id,
			d.Earnings, d.Points, d.Clicks, d.Referrals, d.CompletedOffers,
			d.SocialShares, d.OfferClicks, d.Donated,
			w.Donated, w.Referrals, w.Clicks,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("failed to update counters: %w", err)
		}
		if rec == nil {
			return nil
		}
		return insertRecord(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// RecordDailyLogin writes the daily-login record for day and, only if it
// was not already present, advances the streak and credits points.
// The returned bool reports whether this call recorded the login.
func (r *UserRepository) RecordDailyLogin(ctx context.Context, id string, day time.Time, points int64) (*model.UserAccount, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, ErrRecordNotFound
	}

	const insert = `
		INSERT INTO daily_logins (id, user_uuid, login_date, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_uuid, login_date) DO NOTHING
	`
	update := `
		UPDATE users SET
			login_streak = CASE WHEN last_login_date = $2::date - 1 THEN login_streak + 1 ELSE 1 END,
			last_login_date = $2::date,
			total_points = total_points + $3,
			updated_at = NOW()
		WHERE uuid = $1
		RETURNING ` + userColumns

	var (
		user     *model.UserAccount
		recorded bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insert, uuid.NewString(), id, day)
		if err != nil {
			if errors.Is(mapPgError(err), ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("failed to insert daily login: %w", err)
		}

		if tag.RowsAffected() == 0 {
			user, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uuid = $1`, id))
			if err != nil {
				return fmt.Errorf("failed to get user: %w", err)
			}
			return nil
		}

		recorded = true
		user, err = scanUser(tx.QueryRow(ctx, update, id, day, points))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("failed to update login streak: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return user, recorded, nil
}

// SetWithdrawalEligible writes the cached eligibility flag.
func (r *UserRepository) SetWithdrawalEligible(ctx context.Context, id string, eligible bool) error {
	const query = `
		UPDATE users
		SET withdrawal_eligible = $2, updated_at = NOW()
		WHERE uuid = $1
	`

	result, err := r.pool.Exec(ctx, query, id, eligible)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal eligibility: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// UpdateUsername updates an account's display name.
func (r *UserRepository) UpdateUsername(ctx context.Context, id string, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE uuid = $1
	`

	result, err := r.pool.Exec(ctx, query, id, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// LiveStats returns site-wide totals.
func (r *UserRepository) LiveStats(ctx context.Context) (*model.LiveStats, error) {
	const query = `
		SELECT COUNT(*), COALESCE(SUM(earnings), 0), COALESCE(SUM(total_clicks), 0)::BIGINT
		FROM users
	`

	var (
		stats    model.LiveStats
		earnings decimal.Decimal
	)
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.TotalUsers, &earnings, &stats.TotalClicks); err != nil {
		return nil, fmt.Errorf("failed to get live stats: %w", err)
	}
	stats.TotalEarnings = earnings
	return &stats, nil
}
