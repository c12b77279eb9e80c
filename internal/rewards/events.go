package rewards

import (
	"github.com/shopspring/decimal"
)

// Kind names an accrual event. The string values are persisted.
type Kind string

// Accrual event kinds.
const (
	KindClick           Kind = "click"
	KindReferral        Kind = "referral"
	KindDonation        Kind = "donation"
	KindOfferCompletion Kind = "offer_completion"
	KindSocialShare     Kind = "social_share"
	KindOfferClick      Kind = "offer_click"
	KindDailyLogin      Kind = "daily_login"
)

// Kinds lists every accrual event kind.
func Kinds() []Kind {
	return []Kind{
		KindClick, KindReferral, KindDonation, KindOfferCompletion,
		KindSocialShare, KindOfferClick, KindDailyLogin,
	}
}

// Event is an unconditionally additive accrual event. Daily login is not an
// Event: its streak depends on prior state, see NextStreak.
type Event interface {
	Kind() Kind
	Delta(p Policy) Delta
}

// Delta is the counter increment produced by one event.
type Delta struct {
	Earnings        decimal.Decimal
	Points          int64
	Clicks          int64
	Referrals       int64
	CompletedOffers int64
	SocialShares    int64
	OfferClicks     int64
	Donated         decimal.Decimal
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Earnings.IsZero() && d.Donated.IsZero() && d.Points == 0 &&
		d.Clicks == 0 && d.Referrals == 0 && d.CompletedOffers == 0 &&
		d.SocialShares == 0 && d.OfferClicks == 0
}

// Click is a third-party click on a referral link, attributed to the link owner.
type Click struct {
	ReferralCode string
}

func (Click) Kind() Kind { return KindClick }

func (Click) Delta(p Policy) Delta {
	return Delta{Clicks: 1, Earnings: p.ClickEarnings, Points: p.ClickPoints}
}

// Referral is a completed signup that used the referrer's code.
type Referral struct {
	ReferredUUID string
	Code         string
}

func (Referral) Kind() Kind { return KindReferral }

func (Referral) Delta(p Policy) Delta {
	return Delta{Referrals: 1, Earnings: p.ReferralEarnings, Points: p.ReferralPoints}
}

// Donation is a confirmed fiat or crypto donation.
type Donation struct {
	Amount          decimal.Decimal
	Currency        string
	Network         string
	TxHash          string
	PaymentIntentID string
}

func (Donation) Kind() Kind { return KindDonation }

// Delta credits DonationPointsPerUnit points per whole currency unit;
// fractional points are truncated.
func (e Donation) Delta(p Policy) Delta {
	points := e.Amount.Mul(decimal.NewFromInt(p.DonationPointsPerUnit)).IntPart()
	return Delta{Donated: e.Amount, Points: points}
}

// OfferCompletion is a completed partner offer paying a fixed reward.
type OfferCompletion struct {
	OfferID string
	Reward  decimal.Decimal
}

func (OfferCompletion) Kind() Kind { return KindOfferCompletion }

func (e OfferCompletion) Delta(p Policy) Delta {
	return Delta{Earnings: e.Reward, CompletedOffers: 1, Points: p.OfferPoints}
}

// SocialShare is a share of the referral link on a social platform.
type SocialShare struct {
	Platform string
}

func (SocialShare) Kind() Kind { return KindSocialShare }

func (SocialShare) Delta(p Policy) Delta {
	return Delta{SocialShares: 1, Earnings: p.ShareEarnings, Points: p.SharePoints}
}

// OfferClick is the intent signal recorded before an offer is completed.
type OfferClick struct {
	OfferID string
}

func (OfferClick) Kind() Kind { return KindOfferClick }

func (OfferClick) Delta(p Policy) Delta {
	return Delta{OfferClicks: 1, Points: p.OfferClickPoints}
}
