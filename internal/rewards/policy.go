// Package rewards holds the pure accrual, eligibility and ticket rules.
// Nothing in this package touches storage; services feed it counters and
// persist whatever it computes.
package rewards

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InfluenceWeights are the multipliers of the influence score formula.
type InfluenceWeights struct {
	Donated   int64
	Referrals int64
	Clicks    int64
}

// Thresholds gate withdrawal eligibility. All of them must hold.
type Thresholds struct {
	Donated         decimal.Decimal
	Referrals       int64
	Clicks          int64
	CompletedOffers int64
	SocialShares    int64
	Points          int64
	AccountAge      time.Duration
}

// Policy is the immutable reward configuration injected into the engine.
type Policy struct {
	SignupBonus decimal.Decimal

	ClickEarnings decimal.Decimal
	ClickPoints   int64

	ReferralEarnings decimal.Decimal
	ReferralPoints   int64

	DonationPointsPerUnit int64

	OfferPoints int64

	ShareEarnings decimal.Decimal
	SharePoints   int64

	OfferClickPoints int64
	DailyLoginPoints int64

	Influence     InfluenceWeights
	Thresholds    Thresholds
	MinWithdrawal decimal.Decimal
	TicketDivisor int64
}

// DefaultPolicy returns the production reward schedule.
func DefaultPolicy() Policy {
	return Policy{
		SignupBonus:           decimal.NewFromInt(100),
		ClickEarnings:         decimal.NewFromInt(2),
		ClickPoints:           1,
		ReferralEarnings:      decimal.NewFromInt(50),
		ReferralPoints:        50,
		DonationPointsPerUnit: 10,
		OfferPoints:           5,
		ShareEarnings:         decimal.NewFromInt(2),
		SharePoints:           2,
		OfferClickPoints:      1,
		DailyLoginPoints:      1,
		Influence: InfluenceWeights{
			Donated:   10,
			Referrals: 5,
			Clicks:    1,
		},
		Thresholds: Thresholds{
			Donated:         decimal.NewFromInt(1),
			Referrals:       3,
			Clicks:          50,
			CompletedOffers: 5,
			SocialShares:    10,
			Points:          100,
			AccountAge:      7 * 24 * time.Hour,
		},
		MinWithdrawal: decimal.NewFromInt(25),
		TicketDivisor: 10,
	}
}

// Validate ensures the policy is internally consistent.
func (p Policy) Validate() error {
	if p.TicketDivisor <= 0 {
		return errors.New("ticket divisor must be positive")
	}
	if !p.MinWithdrawal.IsPositive() {
		return errors.New("minimum withdrawal must be positive")
	}
	if p.SignupBonus.IsNegative() || p.ClickEarnings.IsNegative() ||
		p.ReferralEarnings.IsNegative() || p.ShareEarnings.IsNegative() {
		return errors.New("earnings rewards must not be negative")
	}
	if p.ClickPoints < 0 || p.ReferralPoints < 0 || p.DonationPointsPerUnit < 0 ||
		p.OfferPoints < 0 || p.SharePoints < 0 || p.OfferClickPoints < 0 || p.DailyLoginPoints < 0 {
		return errors.New("point rewards must not be negative")
	}
	if p.Influence.Donated < 0 || p.Influence.Referrals < 0 || p.Influence.Clicks < 0 {
		return errors.New("influence weights must not be negative")
	}
	if p.Thresholds.AccountAge < 0 {
		return errors.New("account age threshold must not be negative")
	}
	return nil
}
