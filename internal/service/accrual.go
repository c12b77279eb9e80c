package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/metrics"
	"santapot/internal/model"
	"santapot/internal/pubsub"
	"santapot/internal/repository"
	"santapot/internal/rewards"
)

// AccrualService turns qualifying actions into counter deltas, applies them
// atomically together with their event record, and re-evaluates eligibility.
type AccrualService struct {
	users       UserStore
	pots        PotStore
	eligibility *EligibilityService
	policy      rewards.Policy
	pub         Publisher
	loc         *time.Location
	now         func() time.Time
}

// NewAccrualService creates a new AccrualService.
func NewAccrualService(
	users UserStore,
	pots PotStore,
	eligibility *EligibilityService,
	policy rewards.Policy,
	pub Publisher,
	loc *time.Location,
	now func() time.Time,
) *AccrualService {
	if pub == nil {
		pub = noopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &AccrualService{
		users:       users,
		pots:        pots,
		eligibility: eligibility,
		policy:      policy,
		pub:         pub,
		loc:         loc,
		now:         now,
	}
}

// Policy returns the reward policy in force.
func (s *AccrualService) Policy() rewards.Policy {
	return s.policy
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrDuplicateRecord):
		return "duplicate"
	default:
		return "error"
	}
}

// apply runs one event through the store and the eligibility evaluator.
func (s *AccrualService) apply(ctx context.Context, uuid string, ev rewards.Event, rec model.EventRecord) (*model.UserAccount, error) {
	user, err := s.users.Accrue(ctx, uuid, ev.Delta(s.policy), s.policy.Influence, rec)
	metrics.Ledger().ObserveAccrual(string(ev.Kind()), outcome(err))
	if err != nil {
		log.Error().Err(err).
			Str("operation", string(ev.Kind())).
			Str("uuid", uuid).
			Interface("event", ev).
			Msg("Accrual failed")
		return nil, storeErr(string(ev.Kind()), err)
	}

	if _, err := s.eligibility.Refresh(ctx, user); err != nil {
		publishUser(ctx, s.pub, user)
		return user, err
	}

	publishUser(ctx, s.pub, user)
	return user, nil
}

// Click credits uuid for a click on its referral link.
func (s *AccrualService) Click(ctx context.Context, uuid, referralCode string, ip *string) (*model.UserAccount, error) {
	rec := &model.ClickRecord{UserUUID: uuid, ReferralCode: referralCode, IPAddress: ip}
	return s.apply(ctx, uuid, rewards.Click{ReferralCode: referralCode}, rec)
}

// Referral credits referrerUUID for a new account created with its code.
// The caller guarantees the referred account had no prior profile; the
// store rejects a second credit for the same referred account.
func (s *AccrualService) Referral(ctx context.Context, referrerUUID, referredUUID, code string) (*model.UserAccount, error) {
	if referrerUUID == referredUUID {
		return nil, ErrSelfReferral
	}
	rec := &model.ReferralRecord{
		ReferrerUUID:     referrerUUID,
		ReferredUUID:     referredUUID,
		ReferralCodeUsed: code,
		Status:           model.ReferralCompleted,
	}
	return s.apply(ctx, referrerUUID, rewards.Referral{ReferredUUID: referredUUID, Code: code}, rec)
}

// Donate credits a confirmed donation and adds it to the global pot and the
// active prize pool. Pot updates run after the account update and are not
// rolled back with it.
func (s *AccrualService) Donate(ctx context.Context, uuid string, d rewards.Donation) (*model.UserAccount, error) {
	rec := &model.DonationRecord{
		UserUUID: uuid,
		Amount:   d.Amount,
		Currency: d.Currency,
		Network:  d.Network,
	}
	if d.TxHash != "" {
		h := d.TxHash
		rec.TransactionHash = &h
	}
	if d.PaymentIntentID != "" {
		id := d.PaymentIntentID
		rec.PaymentIntentID = &id
	}

	user, err := s.apply(ctx, uuid, d, rec)
	if user == nil {
		return nil, err
	}
	metrics.Ledger().ObserveDonation(d.Network)

	if potErr := s.addToPots(ctx, uuid, d.Amount); potErr != nil {
		return user, potErr
	}
	return user, err
}

func (s *AccrualService) addToPots(ctx context.Context, uuid string, amount decimal.Decimal) error {
	pot, err := s.pots.IncrementGlobalPot(ctx, amount, 1, 0)
	if err != nil {
		log.Error().Err(err).
			Str("operation", "donation_global_pot").
			Str("uuid", uuid).
			Str("amount", amount.String()).
			Msg("Failed to update global pot after donation")
		return storeErr("increment global pot", err)
	}
	metrics.Ledger().SetGlobalPot(pot.TotalAmount, pot.TotalUsers)
	publish(ctx, s.pub, pubsub.TopicPot, pot)

	if err := s.pots.AddToActivePool(ctx, amount); err != nil {
		if errors.Is(err, repository.ErrNoActivePool) {
			log.Warn().Str("uuid", uuid).Msg("No active prize pool, donation not added to a pool")
			return nil
		}
		log.Error().Err(err).
			Str("operation", "donation_prize_pool").
			Str("uuid", uuid).
			Str("amount", amount.String()).
			Msg("Failed to update prize pool after donation")
		return storeErr("add to prize pool", err)
	}
	if p, err := s.pots.ActivePool(ctx); err == nil {
		publish(ctx, s.pub, pubsub.TopicPool, p)
	}
	return nil
}

// CompleteOffer credits an offer reward. It does not check for a previous
// completion; callers must use HasCompletedOffer first.
func (s *AccrualService) CompleteOffer(ctx context.Context, uuid, offerID string, reward decimal.Decimal) (*model.UserAccount, error) {
	rec := &model.OfferCompletionRecord{UserUUID: uuid, OfferID: offerID, Reward: reward}
	return s.apply(ctx, uuid, rewards.OfferCompletion{OfferID: offerID, Reward: reward}, rec)
}

// SocialShare credits a share on platform.
func (s *AccrualService) SocialShare(ctx context.Context, uuid, platform string) (*model.UserAccount, error) {
	return s.apply(ctx, uuid, rewards.SocialShare{Platform: platform}, nil)
}

// OfferClick records intent on an offer before completion.
func (s *AccrualService) OfferClick(ctx context.Context, uuid, offerID string) (*model.UserAccount, error) {
	return s.apply(ctx, uuid, rewards.OfferClick{OfferID: offerID}, nil)
}

// DailyLogin records today's login once. The returned bool is false when
// today was already recorded, in which case nothing changed.
func (s *AccrualService) DailyLogin(ctx context.Context, uuid string) (*model.UserAccount, bool, error) {
	today := rewards.CalendarDay(s.now(), s.loc)

	user, recorded, err := s.users.RecordDailyLogin(ctx, uuid, today, s.policy.DailyLoginPoints)
	result := outcome(err)
	if err == nil && !recorded {
		result = "duplicate"
	}
	metrics.Ledger().ObserveAccrual(string(rewards.KindDailyLogin), result)
	if err != nil {
		log.Error().Err(err).
			Str("operation", string(rewards.KindDailyLogin)).
			Str("uuid", uuid).
			Time("date", today).
			Msg("Daily login failed")
		return nil, false, storeErr("daily login", err)
	}
	if !recorded {
		return user, false, nil
	}

	if _, err := s.eligibility.Refresh(ctx, user); err != nil {
		return user, true, err
	}
	publishUser(ctx, s.pub, user)
	return user, true, nil
}
