package service

import (
	"time"

	"santapot/internal/model"
	"santapot/internal/pkg/lock"
	"santapot/internal/rewards"
)

// Settings carries the configuration the services need.
type Settings struct {
	Policy           rewards.Policy
	TicketPolicy     TicketPolicy
	Pool             PoolDefaults
	Location         *time.Location
	PublicURL        string
	Offers           []model.Offer
	WebhookSecret    string
	WebhookTolerance time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Services is the wired service graph shared by the HTTP and chat front ends.
type Services struct {
	Accounts    *AccountService
	Accrual     *AccrualService
	Eligibility *EligibilityService
	PrizePool   *PrizePoolService
	Withdrawals *WithdrawalService
	Offers      *OfferService
	Donations   *DonationService
	Stats       *StatsService
	Locks       *lock.KeyLock
}

// New wires the services over ledger. pub and verifier may be nil.
func New(ledger Ledger, settings Settings, pub Publisher, verifier ChainVerifier) *Services {
	if pub == nil {
		pub = noopPublisher{}
	}
	now := settings.Now
	if now == nil {
		now = time.Now
	}

	locks := lock.New()
	pool := NewPrizePoolService(ledger.Pots, locks, settings.TicketPolicy, settings.Policy.TicketDivisor, settings.Pool, pub, now)
	eligibility := NewEligibilityService(ledger.Users, pool, settings.Policy.Thresholds, now)
	accrual := NewAccrualService(ledger.Users, ledger.Pots, eligibility, settings.Policy, pub, settings.Location, now)
	accounts := NewAccountService(ledger.Users, ledger.Events, ledger.Pots, accrual, settings.Policy, settings.PublicURL, pub)
	withdrawals := NewWithdrawalService(ledger.Users, ledger.Withdrawals, locks, settings.Policy.MinWithdrawal)

	return &Services{
		Accounts:    accounts,
		Accrual:     accrual,
		Eligibility: eligibility,
		PrizePool:   pool,
		Withdrawals: withdrawals,
		Offers:      NewOfferService(settings.Offers, ledger.Events, accrual),
		Donations:   NewDonationService(accrual, ledger.Events, verifier, settings.WebhookSecret, settings.WebhookTolerance, now),
		Stats:       NewStatsService(ledger.Users, ledger.Pots, accounts, eligibility, withdrawals, pub),
		Locks:       locks,
	}
}
