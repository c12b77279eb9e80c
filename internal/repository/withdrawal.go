package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"santapot/internal/model"
)

// WithdrawalRepository handles withdrawal request persistence.
type WithdrawalRepository struct {
	pool *pgxpool.Pool
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{pool: pool}
}

// CreateWithdrawal writes a withdrawal request. A missing ID is generated.
func (r *WithdrawalRepository) CreateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) (*model.WithdrawalRequest, error) {
	const query = `
		INSERT INTO withdrawals (id, user_uuid, amount, payment_method, payment_details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, user_uuid, amount, payment_method, payment_details, status, created_at, processed_at, admin_notes
	`

	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}

	var out model.WithdrawalRequest
	err := r.pool.QueryRow(ctx, query, id, w.UserUUID, w.Amount, w.PaymentMethod, w.PaymentDetails, w.Status).Scan(
		&out.ID,
		&out.UserUUID,
		&out.Amount,
		&out.PaymentMethod,
		&out.PaymentDetails,
		&out.Status,
		&out.CreatedAt,
		&out.ProcessedAt,
		&out.AdminNotes,
	)
	if err != nil {
		if mapped := mapPgError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	return &out, nil
}

// PendingTotal returns the sum of the user's pending withdrawal amounts.
func (r *WithdrawalRepository) PendingTotal(ctx context.Context, userUUID string) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdrawals
		WHERE user_uuid = $1 AND status = 'pending'
	`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, userUUID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending withdrawals: %w", err)
	}
	return total, nil
}

// ListWithdrawals returns the user's withdrawal requests, newest first.
func (r *WithdrawalRepository) ListWithdrawals(ctx context.Context, userUUID string, limit int) ([]*model.WithdrawalRequest, error) {
	const query = `
		SELECT id, user_uuid, amount, payment_method, payment_details, status, created_at, processed_at, admin_notes
		FROM withdrawals
		WHERE user_uuid = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*model.WithdrawalRequest
	for rows.Next() {
		var w model.WithdrawalRequest
		err := rows.Scan(
			&w.ID,
			&w.UserUUID,
			&w.Amount,
			&w.PaymentMethod,
			&w.PaymentDetails,
			&w.Status,
			&w.CreatedAt,
			&w.ProcessedAt,
			&w.AdminNotes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}

	return withdrawals, nil
}
