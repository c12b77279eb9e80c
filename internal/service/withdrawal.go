package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/metrics"
	"santapot/internal/model"
	"santapot/internal/pkg/lock"
)

const defaultListLimit = 50

// amountPlaces is the precision withdrawals are stored with.
const amountPlaces = 2

// WithdrawalService gates and records payout requests.
type WithdrawalService struct {
	users       UserStore
	withdrawals WithdrawalStore
	locks       *lock.KeyLock
	minimum     decimal.Decimal
}

// NewWithdrawalService creates a new WithdrawalService.
func NewWithdrawalService(users UserStore, withdrawals WithdrawalStore, locks *lock.KeyLock, minimum decimal.Decimal) *WithdrawalService {
	return &WithdrawalService{
		users:       users,
		withdrawals: withdrawals,
		locks:       locks,
		minimum:     minimum,
	}
}

// Minimum returns the smallest amount that may be requested.
func (s *WithdrawalService) Minimum() decimal.Decimal {
	return s.minimum
}

// checkWithdrawal applies the request gates in order; the first failure wins.
// Amounts finer than a cent are rejected rather than rounded.
func checkWithdrawal(eligible bool, amount, available, minimum decimal.Decimal, details string) error {
	if !eligible {
		return ErrNotEligible
	}
	if !amount.IsPositive() || amount.LessThan(minimum) {
		return ErrBelowMinimum
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, amountPlaces)
	}
	if amount.GreaterThan(available) {
		return ErrInsufficientBalance
	}
	if strings.TrimSpace(details) == "" {
		return ErrMissingPaymentDetails
	}
	return nil
}

// AvailableBalance returns lifetime earnings minus pending withdrawals.
func (s *WithdrawalService) AvailableBalance(ctx context.Context, uuid string) (decimal.Decimal, error) {
	user, err := s.users.GetByUUID(ctx, uuid)
	if err != nil {
		return decimal.Zero, storeErr("get user", err)
	}
	return s.available(ctx, user)
}

func (s *WithdrawalService) available(ctx context.Context, user *model.UserAccount) (decimal.Decimal, error) {
	pending, err := s.withdrawals.PendingTotal(ctx, user.UUID)
	if err != nil {
		return decimal.Zero, storeErr("sum pending withdrawals", err)
	}
	return user.Earnings.Sub(pending), nil
}

// RequestWithdrawal validates and writes a pending withdrawal. Earnings are
// not decremented; the pending amount is excluded from the available
// balance until an admin resolves the request.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, uuid string, amount decimal.Decimal, method model.PaymentMethod, details string) (*model.WithdrawalRequest, error) {
	var created *model.WithdrawalRequest

	err := s.locks.WithLockContext(ctx, "withdraw:"+uuid, func() error {
		user, err := s.users.GetByUUID(ctx, uuid)
		if err != nil {
			return storeErr("get user", err)
		}
		available, err := s.available(ctx, user)
		if err != nil {
			return err
		}

		if err := checkWithdrawal(user.WithdrawalEligible, amount, available, s.minimum, details); err != nil {
			return err
		}
		if !method.Valid() {
			return ErrInvalidPaymentMethod
		}

		created, err = s.withdrawals.CreateWithdrawal(ctx, &model.WithdrawalRequest{
			UserUUID:       uuid,
			Amount:         amount,
			PaymentMethod:  method,
			PaymentDetails: strings.TrimSpace(details),
			Status:         model.WithdrawalPending,
		})
		if err != nil {
			return storeErr("create withdrawal", err)
		}
		return nil
	})

	metrics.Ledger().ObserveWithdrawal(withdrawalOutcome(err))
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, ErrWriteFailed) {
			ev = log.Error()
		}
		ev.Err(err).
			Str("operation", "request_withdrawal").
			Str("uuid", uuid).
			Str("amount", amount.String()).
			Str("payment_method", string(method)).
			Msg("Withdrawal request rejected")
		return nil, err
	}

	log.Info().
		Str("uuid", uuid).
		Str("withdrawal_id", created.ID).
		Str("amount", amount.String()).
		Msg("Withdrawal request created")
	return created, nil
}

func withdrawalOutcome(err error) string {
	switch {
	case err == nil:
		return "pending"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrMissingPaymentDetails):
		return "missing_payment_details"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	default:
		return "error"
	}
}

// ListWithdrawals returns the account's requests, newest first.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, uuid string) ([]*model.WithdrawalRequest, error) {
	list, err := s.withdrawals.ListWithdrawals(ctx, uuid, defaultListLimit)
	if err != nil {
		return nil, storeErr("list withdrawals", err)
	}
	return list, nil
}
