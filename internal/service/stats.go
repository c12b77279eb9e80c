package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/metrics"
	"santapot/internal/model"
	"santapot/internal/pubsub"
	"santapot/internal/rewards"
)

// Dashboard is the per-account summary shown on the home screen.
type Dashboard struct {
	User             *model.UserAccount  `json:"user"`
	Eligibility      rewards.Eligibility `json:"eligibility"`
	AvailableBalance decimal.Decimal     `json:"available_balance"`
	ReferralLink     string              `json:"referral_link"`
	Entry            *model.PrizeEntry   `json:"prize_entry,omitempty"`
	Pool             *model.PrizePool    `json:"prize_pool,omitempty"`
}

// StatsService serves read-only display data. Read failures degrade to
// zero values instead of errors.
type StatsService struct {
	users       UserStore
	pots        PotStore
	accounts    *AccountService
	eligibility *EligibilityService
	withdrawals *WithdrawalService
	pub         Publisher
}

// NewStatsService creates a new StatsService.
func NewStatsService(users UserStore, pots PotStore, accounts *AccountService, eligibility *EligibilityService, withdrawals *WithdrawalService, pub Publisher) *StatsService {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &StatsService{
		users:       users,
		pots:        pots,
		accounts:    accounts,
		eligibility: eligibility,
		withdrawals: withdrawals,
		pub:         pub,
	}
}

// LiveStats returns site-wide totals, or zeros if they cannot be read.
func (s *StatsService) LiveStats(ctx context.Context) model.LiveStats {
	stats, err := s.users.LiveStats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load live stats")
		return model.LiveStats{}
	}
	return *stats
}

// GlobalPot returns the donation aggregate, or zeros if it cannot be read.
func (s *StatsService) GlobalPot(ctx context.Context) model.GlobalPot {
	pot, err := s.pots.GetGlobalPot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load global pot")
		return model.GlobalPot{}
	}
	return *pot
}

// Dashboard assembles the account summary. Only the account lookup is
// fatal; the other sections are left empty on failure.
func (s *StatsService) Dashboard(ctx context.Context, uuid string) (*Dashboard, error) {
	user, err := s.accounts.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		User:         user,
		Eligibility:  s.eligibility.Evaluate(user),
		ReferralLink: s.accounts.ReferralLink(user.ReferralCode),
	}

	if available, err := s.withdrawals.available(ctx, user); err == nil {
		d.AvailableBalance = available
	} else {
		log.Warn().Err(err).Str("uuid", uuid).Msg("Failed to compute available balance")
	}

	if pool, err := s.pots.ActivePool(ctx); err == nil {
		d.Pool = pool
		if entry, err := s.pots.GetEntry(ctx, pool.ID, uuid); err == nil {
			d.Entry = entry
		}
	}

	return d, nil
}

// Broadcast publishes live stats and the global pot to subscribers and
// refreshes the pot gauges.
func (s *StatsService) Broadcast(ctx context.Context) {
	stats := s.LiveStats(ctx)
	publish(ctx, s.pub, pubsub.TopicStats, stats)

	pot := s.GlobalPot(ctx)
	metrics.Ledger().SetGlobalPot(pot.TotalAmount, pot.TotalUsers)
	publish(ctx, s.pub, pubsub.TopicPot, pot)
}
