package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"santapot/internal/model"
	"santapot/internal/rewards"
)

// EligibilityService evaluates withdrawal eligibility and keeps the cached
// flag on the account in sync.
type EligibilityService struct {
	users      UserStore
	pool       *PrizePoolService
	thresholds rewards.Thresholds
	now        func() time.Time
}

// NewEligibilityService creates a new EligibilityService. pool may be nil,
// in which case eligible accounts are not entered into the prize pool.
func NewEligibilityService(users UserStore, pool *PrizePoolService, thresholds rewards.Thresholds, now func() time.Time) *EligibilityService {
	if now == nil {
		now = time.Now
	}
	return &EligibilityService{users: users, pool: pool, thresholds: thresholds, now: now}
}

// Evaluate computes eligibility and per-requirement progress for user.
func (s *EligibilityService) Evaluate(user *model.UserAccount) rewards.Eligibility {
	return rewards.Evaluate(user.Counters(), user.CreatedAt, s.now(), s.thresholds)
}

// Progress loads the account and reports its eligibility checklist.
func (s *EligibilityService) Progress(ctx context.Context, uuid string) (*model.UserAccount, rewards.Eligibility, error) {
	user, err := s.users.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, rewards.Eligibility{}, storeErr("get user", err)
	}
	return user, s.Evaluate(user), nil
}

// Refresh evaluates the freshly updated user, writes the flag only when it
// changed, and enters eligible accounts with positive influence into the
// active prize pool.
func (s *EligibilityService) Refresh(ctx context.Context, user *model.UserAccount) (rewards.Eligibility, error) {
	e := s.Evaluate(user)

	if e.Eligible != user.WithdrawalEligible {
		if err := s.users.SetWithdrawalEligible(ctx, user.UUID, e.Eligible); err != nil {
			log.Error().Err(err).
				Str("operation", "refresh_eligibility").
				Str("uuid", user.UUID).
				Bool("eligible", e.Eligible).
				Msg("Failed to update withdrawal eligibility")
			return e, storeErr("set withdrawal eligible", err)
		}
		user.WithdrawalEligible = e.Eligible
		log.Info().Str("uuid", user.UUID).Bool("eligible", e.Eligible).Msg("Withdrawal eligibility changed")
	}

	if e.Eligible && user.InfluenceScore.IsPositive() && s.pool != nil {
		if _, err := s.pool.Enter(ctx, user.UUID, user.DisplayName(), user.InfluenceScore); err != nil {
			return e, err
		}
	}

	return e, nil
}
