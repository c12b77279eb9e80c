package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/metrics"
	"santapot/internal/model"
	"santapot/internal/pubsub"
	"santapot/internal/repository"
	"santapot/internal/rewards"
)

const referralCodeAttempts = 5

// RegisterInput is the identity a new account is created for.
type RegisterInput struct {
	ExternalID   string
	Email        string
	Username     string
	ReferralCode string
}

// AccountService handles registration and account lookups.
type AccountService struct {
	users     UserStore
	events    EventStore
	pots      PotStore
	accrual   *AccrualService
	policy    rewards.Policy
	publicURL string
	pub       Publisher
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserStore, events EventStore, pots PotStore, accrual *AccrualService, policy rewards.Policy, publicURL string, pub Publisher) *AccountService {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &AccountService{
		users:     users,
		events:    events,
		pots:      pots,
		accrual:   accrual,
		policy:    policy,
		publicURL: strings.TrimRight(publicURL, "/"),
		pub:       pub,
	}
}

// NewReferralCode returns an 8-character uppercase code.
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NormalizeReferralCode trims and uppercases a user-supplied code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Register returns the account for input.ExternalID, creating it on first
// call. A new account is credited the signup bonus, counted in the global
// pot, and, when referralCode belongs to another account, credited to that
// referrer. The returned bool reports whether the account was created.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*model.UserAccount, bool, error) {
	if input.ExternalID == "" {
		return nil, false, fmt.Errorf("external id is required")
	}

	existing, err := s.users.GetByExternalID(ctx, input.ExternalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, false, storeErr("get user", err)
	}

	user, err := s.create(ctx, input)
	if errors.Is(err, repository.ErrDuplicateRecord) {
		// Lost a race with another registration for the same identity.
		existing, getErr := s.users.GetByExternalID(ctx, input.ExternalID)
		if getErr == nil {
			return existing, false, nil
		}
	}
	if err != nil {
		log.Error().Err(err).
			Str("operation", "register").
			Str("external_id", input.ExternalID).
			Msg("Failed to create account")
		return nil, false, err
	}

	log.Info().
		Str("uuid", user.UUID).
		Str("referral_code", user.ReferralCode).
		Msg("Account created")

	pot, err := s.pots.IncrementGlobalPot(ctx, decimal.Zero, 0, 1)
	if err != nil {
		log.Error().Err(err).Str("operation", "register_global_pot").Str("uuid", user.UUID).Msg("Failed to count user in global pot")
		return user, true, storeErr("increment global pot", err)
	}
	metrics.Ledger().SetGlobalPot(pot.TotalAmount, pot.TotalUsers)
	publish(ctx, s.pub, pubsub.TopicPot, pot)

	if code := NormalizeReferralCode(input.ReferralCode); code != "" {
		if err := s.creditReferrer(ctx, user, code); err != nil {
			return user, true, err
		}
	}

	return user, true, nil
}

func (s *AccountService) create(ctx context.Context, input RegisterInput) (*model.UserAccount, error) {
	var username *string
	if name := strings.TrimSpace(input.Username); name != "" {
		username = &name
	}

	var lastErr error
	for i := 0; i < referralCodeAttempts; i++ {
		user, err := s.users.Create(ctx, &model.UserAccount{
			UUID:         uuid.NewString(),
			ExternalID:   input.ExternalID,
			Email:        strings.TrimSpace(input.Email),
			Username:     username,
			ReferralCode: NewReferralCode(),
			Earnings:     s.policy.SignupBonus,
		})
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicateRecord) {
			return nil, storeErr("create user", err)
		}
		// Either the identity already exists or the code collided.
		if _, getErr := s.users.GetByExternalID(ctx, input.ExternalID); getErr == nil {
			return nil, repository.ErrDuplicateRecord
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to allocate referral code: %w", lastErr)
}

// creditReferrer records a referral for the owner of code. Unknown codes
// and self-referrals are logged and ignored so signup still succeeds.
func (s *AccountService) creditReferrer(ctx context.Context, referred *model.UserAccount, code string) error {
	referrer, err := s.users.GetByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrRecordNotFound) {
		log.Warn().Str("uuid", referred.UUID).Str("referral_code", code).Msg("Signup used unknown referral code")
		return nil
	}
	if err != nil {
		return storeErr("get referrer", err)
	}
	if referrer.UUID == referred.UUID {
		log.Warn().Str("uuid", referred.UUID).Msg("Ignoring self-referral")
		return nil
	}

	already, err := s.events.HasReferral(ctx, referred.UUID)
	if err != nil {
		return storeErr("check referral", err)
	}
	if already {
		return nil
	}

	if _, err := s.accrual.Referral(ctx, referrer.UUID, referred.UUID, code); err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			return nil
		}
		return err
	}
	return nil
}

// Get returns the account for uuid.
func (s *AccountService) Get(ctx context.Context, uuid string) (*model.UserAccount, error) {
	user, err := s.users.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// GetByExternalID returns the account for an identity-provider key.
func (s *AccountService) GetByExternalID(ctx context.Context, externalID string) (*model.UserAccount, error) {
	user, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// GetByReferralCode returns the owner of code.
func (s *AccountService) GetByReferralCode(ctx context.Context, code string) (*model.UserAccount, error) {
	user, err := s.users.GetByReferralCode(ctx, NormalizeReferralCode(code))
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// ReferralLink builds the public share link for code.
func (s *AccountService) ReferralLink(code string) string {
	return s.publicURL + "/r/" + code
}

// UpdateUsername changes the display name.
func (s *AccountService) UpdateUsername(ctx context.Context, uuid, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if err := s.users.UpdateUsername(ctx, uuid, username); err != nil {
		return storeErr("update username", err)
	}
	return nil
}

// Referrals lists the accounts credited to uuid.
func (s *AccountService) Referrals(ctx context.Context, uuid string) ([]*model.ReferralRecord, error) {
	refs, err := s.events.ListReferrals(ctx, uuid, defaultListLimit)
	if err != nil {
		return nil, storeErr("list referrals", err)
	}
	return refs, nil
}

// ClickReferral credits the owner of code for a link click.
func (s *AccountService) ClickReferral(ctx context.Context, code string, ip *string) (*model.UserAccount, error) {
	owner, err := s.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.accrual.Click(ctx, owner.UUID, owner.ReferralCode, ip)
}
