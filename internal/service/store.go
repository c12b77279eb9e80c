// Package service implements the rewards ledger: accrual, eligibility,
// prize pool entry, withdrawals and the surrounding account, offer and
// donation flows.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"santapot/internal/model"
	"santapot/internal/rewards"
)

// UserStore persists accounts and applies counter deltas atomically.
type UserStore interface {
	Create(ctx context.Context, user *model.UserAccount) (*model.UserAccount, error)
	GetByUUID(ctx context.Context, uuid string) (*model.UserAccount, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.UserAccount, error)
	GetByReferralCode(ctx context.Context, code string) (*model.UserAccount, error)
	Accrue(ctx context.Context, uuid string, d rewards.Delta, w rewards.InfluenceWeights, rec model.EventRecord) (*model.UserAccount, error)
	RecordDailyLogin(ctx context.Context, uuid string, day time.Time, points int64) (*model.UserAccount, bool, error)
	SetWithdrawalEligible(ctx context.Context, uuid string, eligible bool) error
	UpdateUsername(ctx context.Context, uuid string, username string) error
	LiveStats(ctx context.Context) (*model.LiveStats, error)
}

// EventStore answers queries over the append-only event records.
type EventStore interface {
	HasCompletedOffer(ctx context.Context, uuid, offerID string) (bool, error)
	CompletedOfferIDs(ctx context.Context, uuid string) ([]string, error)
	HasReferral(ctx context.Context, referredUUID string) (bool, error)
	ListReferrals(ctx context.Context, referrerUUID string, limit int) ([]*model.ReferralRecord, error)
	ListDonations(ctx context.Context, uuid string, limit int) ([]*model.DonationRecord, error)
	DonationExists(ctx context.Context, paymentIntentID, network, txHash string) (bool, error)
}

// WithdrawalStore persists withdrawal requests.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) (*model.WithdrawalRequest, error)
	PendingTotal(ctx context.Context, uuid string) (decimal.Decimal, error)
	ListWithdrawals(ctx context.Context, uuid string, limit int) ([]*model.WithdrawalRequest, error)
}

// PotStore persists the global pot and prize pools.
type PotStore interface {
	GetGlobalPot(ctx context.Context) (*model.GlobalPot, error)
	IncrementGlobalPot(ctx context.Context, amount decimal.Decimal, donations, users int64) (*model.GlobalPot, error)
	ActivePool(ctx context.Context) (*model.PrizePool, error)
	EnsureActivePool(ctx context.Context, name string, drawDate time.Time, seed decimal.Decimal) (*model.PrizePool, bool, error)
	AddToActivePool(ctx context.Context, amount decimal.Decimal) error
	GetEntry(ctx context.Context, poolID, uuid string) (*model.PrizeEntry, error)
	UpsertEntry(ctx context.Context, e *model.PrizeEntry) (bool, error)
	ListEntries(ctx context.Context, poolID string, limit int) ([]*model.PrizeEntry, error)
}

// Publisher pushes change notifications to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic string, v any) error
}

// Ledger bundles the stores a deployment provides.
type Ledger struct {
	Users       UserStore
	Events      EventStore
	Withdrawals WithdrawalStore
	Pots        PotStore
}
