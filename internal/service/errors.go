package service

import (
	"errors"
	"fmt"

	"santapot/internal/repository"
)

// Withdrawal validation errors, in gate order.
var (
	ErrNotEligible           = errors.New("account is not eligible for withdrawals")
	ErrBelowMinimum          = errors.New("amount is below the minimum withdrawal")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient available balance")
	ErrMissingPaymentDetails = errors.New("payment details are required")
	ErrInvalidPaymentMethod  = errors.New("unsupported payment method")
)

// Other service errors.
var (
	ErrWriteFailed           = errors.New("store write failed")
	ErrOfferAlreadyCompleted = errors.New("offer already completed")
	ErrUnknownOffer          = errors.New("unknown or inactive offer")
	ErrSelfReferral          = errors.New("cannot refer yourself")
	ErrDonationNotConfirmed  = errors.New("donation not confirmed")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
)

// storeErr keeps lookup and uniqueness sentinels visible and marks every
// other store failure as ErrWriteFailed.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrRecordNotFound) ||
		errors.Is(err, repository.ErrDuplicateRecord) ||
		errors.Is(err, repository.ErrNoActivePool) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrWriteFailed, err)
}
