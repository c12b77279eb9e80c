// Package model defines the persisted records of the rewards application.
// Field names in the json/db tags are part of the contract other tooling
// (for example an admin console) relies on.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"santapot/internal/rewards"
)

// UserAccount is one registered identity with its accrual counters.
type UserAccount struct {
	UUID               string          `db:"uuid" json:"uuid"`
	ExternalID         string          `db:"external_id" json:"-"`
	Email              string          `db:"email" json:"email"`
	Username           *string         `db:"username" json:"username"`
	ReferralCode       string          `db:"referral_code" json:"referral_code"`
	Earnings           decimal.Decimal `db:"earnings" json:"earnings"`
	TotalPoints        int64           `db:"total_points" json:"total_points"`
	TotalClicks        int64           `db:"total_clicks" json:"total_clicks"`
	TotalReferrals     int64           `db:"total_referrals" json:"total_referrals"`
	CompletedOffers    int64           `db:"completed_offers" json:"completed_offers"`
	SocialShares       int64           `db:"social_shares" json:"social_shares"`
	OfferClicks        int64           `db:"offer_clicks" json:"offer_clicks"`
	TotalDonated       decimal.Decimal `db:"total_donated" json:"total_donated"`
	InfluenceScore     decimal.Decimal `db:"influence_score" json:"influence_score"`
	LoginStreak        int64           `db:"login_streak" json:"login_streak"`
	LastLoginDate      *time.Time      `db:"last_login_date" json:"last_login_date"`
	WithdrawalEligible bool            `db:"withdrawal_eligible" json:"withdrawal_eligible"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the username, falling back to the referral code.
func (u *UserAccount) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.ReferralCode
}

// Counters returns the accrual state of the account.
func (u *UserAccount) Counters() rewards.Counters {
	c := rewards.Counters{
		Earnings:        u.Earnings,
		TotalPoints:     u.TotalPoints,
		TotalClicks:     u.TotalClicks,
		TotalReferrals:  u.TotalReferrals,
		CompletedOffers: u.CompletedOffers,
		SocialShares:    u.SocialShares,
		OfferClicks:     u.OfferClicks,
		TotalDonated:    u.TotalDonated,
		InfluenceScore:  u.InfluenceScore,
		LoginStreak:     u.LoginStreak,
	}
	if u.LastLoginDate != nil {
		c.LastLoginDate = *u.LastLoginDate
	}
	return c
}

// SetCounters copies accrual state back into the account.
func (u *UserAccount) SetCounters(c rewards.Counters) {
	u.Earnings = c.Earnings
	u.TotalPoints = c.TotalPoints
	u.TotalClicks = c.TotalClicks
	u.TotalReferrals = c.TotalReferrals
	u.CompletedOffers = c.CompletedOffers
	u.SocialShares = c.SocialShares
	u.OfferClicks = c.OfferClicks
	u.TotalDonated = c.TotalDonated
	u.InfluenceScore = c.InfluenceScore
	u.LoginStreak = c.LoginStreak
	if !c.LastLoginDate.IsZero() {
		d := c.LastLoginDate
		u.LastLoginDate = &d
	}
}

// Record collection names.
const (
	CollectionClicks           = "clicks"
	CollectionReferrals        = "referrals"
	CollectionDonations        = "donations"
	CollectionOfferCompletions = "offer_completions"
	CollectionDailyLogins      = "daily_logins"
)

// EventRecord is an immutable, append-only audit record of an accrual event.
type EventRecord interface {
	Collection() string
}

// ClickRecord is written for every referral link click.
type ClickRecord struct {
	ID           string    `db:"id" json:"id"`
	UserUUID     string    `db:"user_uuid" json:"user_uuid"`
	ReferralCode string    `db:"referral_code" json:"referral_code"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (ClickRecord) Collection() string { return CollectionClicks }

// Referral statuses.
const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
)

// ReferralRecord links a referrer to the account created with their code.
type ReferralRecord struct {
	ID               string    `db:"id" json:"id"`
	ReferrerUUID     string    `db:"referrer_uuid" json:"referrer_uuid"`
	ReferredUUID     string    `db:"referred_uuid" json:"referred_uuid"`
	ReferralCodeUsed string    `db:"referral_code_used" json:"referral_code_used"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

func (ReferralRecord) Collection() string { return CollectionReferrals }

// DonationRecord is a confirmed fiat or crypto donation.
type DonationRecord struct {
	ID              string          `db:"id" json:"id"`
	UserUUID        string          `db:"user_uuid" json:"user_uuid"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Currency        string          `db:"currency" json:"currency"`
	Network         string          `db:"network" json:"network"`
	TransactionHash *string         `db:"transaction_hash" json:"transaction_hash,omitempty"`
	PaymentIntentID *string         `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

func (DonationRecord) Collection() string { return CollectionDonations }

// OfferCompletionRecord is written once per (user, offer).
type OfferCompletionRecord struct {
	ID        string          `db:"id" json:"id"`
	UserUUID  string          `db:"user_uuid" json:"user_uuid"`
	OfferID   string          `db:"offer_id" json:"offer_id"`
	Reward    decimal.Decimal `db:"reward" json:"reward"`
	CreatedAt time.Time       `db:"created_at" json:"completed_at"`
}

func (OfferCompletionRecord) Collection() string { return CollectionOfferCompletions }

// DailyLoginRecord is unique per (user, calendar day).
type DailyLoginRecord struct {
	ID        string    `db:"id" json:"id"`
	UserUUID  string    `db:"user_uuid" json:"user_uuid"`
	LoginDate time.Time `db:"login_date" json:"login_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (DailyLoginRecord) Collection() string { return CollectionDailyLogins }

// PaymentMethod is a withdrawal payout channel.
type PaymentMethod string

// Supported payout channels.
const (
	PaymentPayPal  PaymentMethod = "paypal"
	PaymentCashApp PaymentMethod = "cashapp"
	PaymentVenmo   PaymentMethod = "venmo"
	PaymentCrypto  PaymentMethod = "crypto"
)

// Valid reports whether m is a supported payout channel.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPayPal, PaymentCashApp, PaymentVenmo, PaymentCrypto:
		return true
	}
	return false
}

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

// Withdrawal states. Only pending is set here; the rest are admin actions.
const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCompleted WithdrawalStatus = "completed"
)

// WithdrawalRequest is a user's request to pay out earned balance.
type WithdrawalRequest struct {
	ID             string           `db:"id" json:"id"`
	UserUUID       string           `db:"user_uuid" json:"uuid"`
	Amount         decimal.Decimal  `db:"amount" json:"amount"`
	PaymentMethod  PaymentMethod    `db:"payment_method" json:"payment_method"`
	PaymentDetails string           `db:"payment_details" json:"payment_details"`
	Status         WithdrawalStatus `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	ProcessedAt    *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
	AdminNotes     *string          `db:"admin_notes" json:"admin_notes,omitempty"`
}

// GlobalPot is the singleton donation aggregate.
type GlobalPot struct {
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	TotalDonations int64           `db:"total_donations" json:"total_donations"`
	TotalUsers     int64           `db:"total_users" json:"total_users"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// PoolStatus is the lifecycle state of a prize pool.
type PoolStatus string

// Prize pool states.
const (
	PoolActive    PoolStatus = "active"
	PoolDrawing   PoolStatus = "drawing"
	PoolCompleted PoolStatus = "completed"
)

// PrizePool is a sweepstakes; at most one is active at a time.
type PrizePool struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	DrawDate       time.Time       `db:"draw_date" json:"draw_date"`
	Status         PoolStatus      `db:"status" json:"status"`
	Entries        int64           `db:"entries" json:"entries"`
	WinnerUUID     *string         `db:"winner_uuid" json:"winner_uuid,omitempty"`
	WinnerUsername *string         `db:"winner_username" json:"winner_username,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// PrizeEntry is a user's weighted ticket count in one pool.
type PrizeEntry struct {
	PoolID         string          `db:"pool_id" json:"pool_id"`
	UserUUID       string          `db:"user_uuid" json:"uuid"`
	Username       string          `db:"username" json:"username"`
	InfluenceScore decimal.Decimal `db:"influence_score" json:"influence_score"`
	Entries        int64           `db:"entries" json:"entries"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Offer is a partner offer that pays a fixed reward once per user.
type Offer struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Reward        decimal.Decimal `json:"reward"`
	Link          string          `json:"link"`
	EstimatedTime string          `json:"estimated_time"`
	Active        bool            `json:"is_active"`
}

// LiveStats is the public site-wide counter strip.
type LiveStats struct {
	TotalUsers    int64           `json:"total_users"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalClicks   int64           `json:"total_clicks"`
}
