package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"santapot/internal/model"
)

// insertRecord appends an event record inside tx. A missing ID is generated;
// CreatedAt is filled from the database.
func insertRecord(ctx context.Context, tx pgx.Tx, rec model.EventRecord) error {
	var (
		row pgx.Row
		dst *time.Time
	)

	switch r := rec.(type) {
	case *model.ClickRecord:
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		row = tx.QueryRow(ctx, `
			INSERT INTO clicks (id, user_uuid, referral_code, ip_address, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING created_at`,
			r.ID, r.UserUUID, r.ReferralCode, r.IPAddress)
		dst = &r.CreatedAt
	case *model.ReferralRecord:
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		row = tx.QueryRow(ctx, `
			INSERT INTO referrals (id, referrer_uuid, referred_uuid, referral_code_used, status, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING created_at`,
			r.ID, r.ReferrerUUID, r.ReferredUUID, r.ReferralCodeUsed, r.Status)
		dst = &r.CreatedAt
	case *model.DonationRecord:
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		row = tx.QueryRow(ctx, `
			INSERT INTO donations (id, user_uuid, amount, currency, network, transaction_hash, payment_intent_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			RETURNING created_at`,
			r.ID, r.UserUUID, r.Amount, r.Currency, r.Network, r.TransactionHash, r.PaymentIntentID)
		dst = &r.CreatedAt
	case *model.OfferCompletionRecord:
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		row = tx.QueryRow(ctx, `
			INSERT INTO offer_completions (id, user_uuid, offer_id, reward, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING created_at`,
			r.ID, r.UserUUID, r.OfferID, r.Reward)
		dst = &r.CreatedAt
	default:
		return fmt.Errorf("unsupported event record %T", rec)
	}

	if err := row.Scan(dst); err != nil {
		if mapped := mapPgError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to append %s record: %w", rec.Collection(), err)
	}
	return nil
}

// EventRepository answers queries over the append-only event records.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository instance.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// HasCompletedOffer reports whether the user already completed offerID.
func (r *EventRepository) HasCompletedOffer(ctx context.Context, userUUID, offerID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM offer_completions WHERE user_uuid = $1 AND offer_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userUUID, offerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check offer completion: %w", err)
	}
	return exists, nil
}

// CompletedOfferIDs returns the offers the user has completed.
func (r *EventRepository) CompletedOfferIDs(ctx context.Context, userUUID string) ([]string, error) {
	const query = `SELECT offer_id FROM offer_completions WHERE user_uuid = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed offers: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed offers: %w", err)
	}
	return ids, nil
}

// HasReferral reports whether referredUUID was already credited to a referrer.
func (r *EventRepository) HasReferral(ctx context.Context, referredUUID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM referrals WHERE referred_uuid = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, referredUUID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check referral: %w", err)
	}
	return exists, nil
}

// ListReferrals returns the referrals credited to referrerUUID, newest first.
func (r *EventRepository) ListReferrals(ctx context.Context, referrerUUID string, limit int) ([]*model.ReferralRecord, error) {
	const query = `
		SELECT id, referrer_uuid, referred_uuid, referral_code_used, status, created_at
		FROM referrals
		WHERE referrer_uuid = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, referrerUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get referrals: %w", err)
	}
	defer rows.Close()

	var referrals []*model.ReferralRecord
	for rows.Next() {
		var ref model.ReferralRecord
		err := rows.Scan(
			&ref.ID,
			&ref.ReferrerUUID,
			&ref.ReferredUUID,
			&ref.ReferralCodeUsed,
			&ref.Status,
			&ref.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, &ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referrals: %w", err)
	}

	return referrals, nil
}

// ListDonations returns the user's donations, newest first.
func (r *EventRepository) ListDonations(ctx context.Context, userUUID string, limit int) ([]*model.DonationRecord, error) {
	const query = `
		SELECT id, user_uuid, amount, currency, network, transaction_hash, payment_intent_id, created_at
		FROM donations
		WHERE user_uuid = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get donations: %w", err)
	}
	defer rows.Close()

	var donations []*model.DonationRecord
	for rows.Next() {
		var d model.DonationRecord
		err := rows.Scan(
			&d.ID,
			&d.UserUUID,
			&d.Amount,
			&d.Currency,
			&d.Network,
			&d.TransactionHash,
			&d.PaymentIntentID,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donations: %w", err)
	}

	return donations, nil
}

// DonationExists reports whether a donation with the given payment intent or
// transaction hash was already recorded.
func (r *EventRepository) DonationExists(ctx context.Context, paymentIntentID, network, txHash string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM donations
			WHERE ($1 <> '' AND payment_intent_id = $1)
			   OR ($3 <> '' AND network = $2 AND lower(transaction_hash) = lower($3))
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, paymentIntentID, network, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check donation: %w", err)
	}
	return exists, nil
}
