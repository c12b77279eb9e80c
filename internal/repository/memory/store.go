// Package memory is an in-process ledger store with the same semantics as
// the PostgreSQL repositories. Every mutation runs under one mutex, which
// makes each accrual an atomic increment.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"santapot/internal/model"
	"santapot/internal/repository"
	"santapot/internal/rewards"
)

type entryKey struct {
	pool string
	user string
}

type loginKey struct {
	user string
	day  string
}

// Store implements the user, event, withdrawal and pot stores.
type Store struct {
	mu sync.Mutex

	now func() time.Time

	users      map[string]*model.UserAccount
	byExternal map[string]string
	byCode     map[string]string

	clicks      []model.ClickRecord
	referrals   []model.ReferralRecord
	donations   []model.DonationRecord
	completions []model.OfferCompletionRecord
	logins      map[loginKey]model.DailyLoginRecord

	withdrawals []model.WithdrawalRequest

	pot     model.GlobalPot
	pools   []*model.PrizePool
	entries map[entryKey]*model.PrizeEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:        func() time.Time { return time.Now().UTC() },
		users:      make(map[string]*model.UserAccount),
		byExternal: make(map[string]string),
		byCode:     make(map[string]string),
		logins:     make(map[loginKey]model.DailyLoginRecord),
		entries:    make(map[entryKey]*model.PrizeEntry),
		pot:        model.GlobalPot{UpdatedAt: time.Now().UTC()},
	}
}

func cloneUser(u *model.UserAccount) *model.UserAccount {
	c := *u
	if u.Username != nil {
		name := *u.Username
		c.Username = &name
	}
	if u.LastLoginDate != nil {
		d := *u.LastLoginDate
		c.LastLoginDate = &d
	}
	return &c
}

// Create inserts a new account.
func (s *Store) Create(_ context.Context, user *model.UserAccount) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.UUID]; ok {
		return nil, repository.ErrDuplicateRecord
	}
	if _, ok := s.byExternal[user.ExternalID]; ok {
		return nil, repository.ErrDuplicateRecord
	}
	if _, ok := s.byCode[user.ReferralCode]; ok {
		return nil, repository.ErrDuplicateRecord
	}

	u := cloneUser(user)
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.UUID] = u
	s.byExternal[u.ExternalID] = u.UUID
	s.byCode[u.ReferralCode] = u.UUID
	return cloneUser(u), nil
}

func (s *Store) lookup(index map[string]string, key string) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := index[key]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return cloneUser(s.users[id]), nil
}

// GetByUUID retrieves an account by uuid.
func (s *Store) GetByUUID(_ context.Context, id string) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return cloneUser(u), nil
}

// GetByExternalID retrieves an account by identity-provider key.
func (s *Store) GetByExternalID(_ context.Context, externalID string) (*model.UserAccount, error) {
	return s.lookup(s.byExternal, externalID)
}

// GetByReferralCode retrieves an account by referral code.
func (s *Store) GetByReferralCode(_ context.Context, code string) (*model.UserAccount, error) {
	return s.lookup(s.byCode, code)
}

// Accrue applies d and appends rec atomically.
func (s *Store) Accrue(_ context.Context, id string, d rewards.Delta, w rewards.InfluenceWeights, rec model.EventRecord) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	if rec != nil {
		if err := s.appendRecord(rec); err != nil {
			return nil, err
		}
	}

	u.SetCounters(u.Counters().Apply(d, w))
	u.UpdatedAt = s.now()
	return cloneUser(u), nil
}

// appendRecord checks the same uniqueness rules as the SQL schema.
func (s *Store) appendRecord(rec model.EventRecord) error {
	now := s.now()
	switch r := rec.(type) {
	case *model.ClickRecord:
		fill(&r.ID, &r.CreatedAt, now)
		s.clicks = append(s.clicks, *r)
	case *model.ReferralRecord:
		if _, ok := s.users[r.ReferredUUID]; !ok {
			return repository.ErrRecordNotFound
		}
		for _, existing := range s.referrals {
			if existing.ReferredUUID == r.ReferredUUID {
				return repository.ErrDuplicateRecord
			}
		}
		fill(&r.ID, &r.CreatedAt, now)
		s.referrals = append(s.referrals, *r)
	case *model.DonationRecord:
		for _, existing := range s.donations {
			if sameDonation(existing, *r) {
				return repository.ErrDuplicateRecord
			}
		}
		fill(&r.ID, &r.CreatedAt, now)
		s.donations = append(s.donations, *r)
	case *model.OfferCompletionRecord:
		for _, existing := range s.completions {
			if existing.UserUUID == r.UserUUID && existing.OfferID == r.OfferID {
				return repository.ErrDuplicateRecord
			}
		}
		fill(&r.ID, &r.CreatedAt, now)
		s.completions = append(s.completions, *r)
	}
	return nil
}

func fill(id *string, createdAt *time.Time, now time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	*createdAt = now
}

func sameDonation(a, b model.DonationRecord) bool {
	if a.PaymentIntentID != nil && b.PaymentIntentID != nil && *a.PaymentIntentID == *b.PaymentIntentID {
		return true
	}
	return a.TransactionHash != nil && b.TransactionHash != nil &&
		a.Network == b.Network && strings.EqualFold(*a.TransactionHash, *b.TransactionHash)
}

// RecordDailyLogin records one login per calendar day.
func (s *Store) RecordDailyLogin(_ context.Context, id string, day time.Time, points int64) (*model.UserAccount, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, false, repository.ErrRecordNotFound
	}

	key := loginKey{user: id, day: day.Format(time.DateOnly)}
	if _, done := s.logins[key]; done {
		return cloneUser(u), false, nil
	}
	s.logins[key] = model.DailyLoginRecord{ID: uuid.NewString(), UserUUID: id, LoginDate: day, CreatedAt: s.now()}

	u.SetCounters(u.Counters().ApplyDailyLogin(day, rewards.Policy{DailyLoginPoints: points}))
	u.UpdatedAt = s.now()
	return cloneUser(u), true, nil
}

// SetWithdrawalEligible writes the cached eligibility flag.
func (s *Store) SetWithdrawalEligible(_ context.Context, id string, eligible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	u.WithdrawalEligible = eligible
	u.UpdatedAt = s.now()
	return nil
}

// UpdateUsername updates an account's display name.
func (s *Store) UpdateUsername(_ context.Context, id string, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	u.Username = &username
	u.UpdatedAt = s.now()
	return nil
}

// LiveStats returns site-wide totals.
func (s *Store) LiveStats(_ context.Context) (*model.LiveStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &model.LiveStats{TotalUsers: int64(len(s.users))}
	for _, u := range s.users {
		stats.TotalEarnings = stats.TotalEarnings.Add(u.Earnings)
		stats.TotalClicks += u.TotalClicks
	}
	return stats, nil
}

// HasCompletedOffer reports whether the user already completed offerID.
func (s *Store) HasCompletedOffer(_ context.Context, userUUID, offerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.completions {
		if c.UserUUID == userUUID && c.OfferID == offerID {
			return true, nil
		}
	}
	return false, nil
}

// CompletedOfferIDs returns the offers the user has completed.
func (s *Store) CompletedOfferIDs(_ context.Context, userUUID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, c := range s.completions {
		if c.UserUUID == userUUID {
			ids = append(ids, c.OfferID)
		}
	}
	return ids, nil
}

// HasReferral reports whether referredUUID was already credited.
func (s *Store) HasReferral(_ context.Context, referredUUID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.referrals {
		if r.ReferredUUID == referredUUID {
			return true, nil
		}
	}
	return false, nil
}

// ListReferrals returns the referrals credited to referrerUUID, newest first.
func (s *Store) ListReferrals(_ context.Context, referrerUUID string, limit int) ([]*model.ReferralRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.ReferralRecord
	for i := len(s.referrals) - 1; i >= 0 && len(out) < limit; i-- {
		if s.referrals[i].ReferrerUUID == referrerUUID {
			r := s.referrals[i]
			out = append(out, &r)
		}
	}
	return out, nil
}

// ListDonations returns the user's donations, newest first.
func (s *Store) ListDonations(_ context.Context, userUUID string, limit int) ([]*model.DonationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.DonationRecord
	for i := len(s.donations) - 1; i >= 0 && len(out) < limit; i-- {
		if s.donations[i].UserUUID == userUUID {
			d := s.donations[i]
			out = append(out, &d)
		}
	}
	return out, nil
}

// DonationExists reports whether a donation with the payment intent or
// transaction hash was already recorded.
func (s *Store) DonationExists(_ context.Context, paymentIntentID, network, txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.donations {
		if paymentIntentID != "" && d.PaymentIntentID != nil && *d.PaymentIntentID == paymentIntentID {
			return true, nil
		}
		if txHash != "" && d.TransactionHash != nil && d.Network == network && strings.EqualFold(*d.TransactionHash, txHash) {
			return true, nil
		}
	}
	return false, nil
}

// ClickCount returns the number of click records written for userUUID.
func (s *Store) ClickCount(userUUID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.clicks {
		if c.UserUUID == userUUID {
			n++
		}
	}
	return n
}

// LoginCount returns the number of daily-login records written for userUUID.
func (s *Store) LoginCount(userUUID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.logins {
		if k.user == userUUID {
			n++
		}
	}
	return n
}

// CreateWithdrawal writes a withdrawal request.
func (s *Store) CreateWithdrawal(_ context.Context, w *model.WithdrawalRequest) (*model.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[w.UserUUID]; !ok {
		return nil, repository.ErrRecordNotFound
	}
	out := *w
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.CreatedAt = s.now()
	s.withdrawals = append(s.withdrawals, out)
	return &out, nil
}

// PendingTotal returns the sum of the user's pending withdrawal amounts.
func (s *Store) PendingTotal(_ context.Context, userUUID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, w := range s.withdrawals {
		if w.UserUUID == userUUID && w.Status == model.WithdrawalPending {
			total = total.Add(w.Amount)
		}
	}
	return total, nil
}

// ListWithdrawals returns the user's withdrawal requests, newest first.
func (s *Store) ListWithdrawals(_ context.Context, userUUID string, limit int) ([]*model.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.WithdrawalRequest
	for i := len(s.withdrawals) - 1; i >= 0 && len(out) < limit; i-- {
		if s.withdrawals[i].UserUUID == userUUID {
			w := s.withdrawals[i]
			out = append(out, &w)
		}
	}
	return out, nil
}

// SetWithdrawalStatus moves a request out of pending, as an admin would.
func (s *Store) SetWithdrawalStatus(id string, status model.WithdrawalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.withdrawals {
		if s.withdrawals[i].ID == id {
			now := s.now()
			s.withdrawals[i].Status = status
			s.withdrawals[i].ProcessedAt = &now
			return nil
		}
	}
	return repository.ErrRecordNotFound
}

// GetGlobalPot returns the donation aggregate.
func (s *Store) GetGlobalPot(_ context.Context) (*model.GlobalPot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pot
	return &p, nil
}

// IncrementGlobalPot adds to the aggregate totals.
func (s *Store) IncrementGlobalPot(_ context.Context, amount decimal.Decimal, donations, users int64) (*model.GlobalPot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pot.TotalAmount = s.pot.TotalAmount.Add(amount)
	s.pot.TotalDonations += donations
	s.pot.TotalUsers += users
	s.pot.UpdatedAt = s.now()
	p := s.pot
	return &p, nil
}

func (s *Store) active() *model.PrizePool {
	for _, p := range s.pools {
		if p.Status == model.PoolActive {
			return p
		}
	}
	return nil
}

// ActivePool returns the active prize pool or ErrNoActivePool.
func (s *Store) ActivePool(_ context.Context) (*model.PrizePool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.active()
	if p == nil {
		return nil, repository.ErrNoActivePool
	}
	c := *p
	return &c, nil
}

// EnsureActivePool creates an active pool unless one exists.
func (s *Store) EnsureActivePool(_ context.Context, name string, drawDate time.Time, seed decimal.Decimal) (*model.PrizePool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.active(); p != nil {
		c := *p
		return &c, false, nil
	}
	p := &model.PrizePool{
		ID:          uuid.NewString(),
		Name:        name,
		TotalAmount: seed,
		DrawDate:    drawDate,
		Status:      model.PoolActive,
		CreatedAt:   s.now(),
	}
	s.pools = append(s.pools, p)
	c := *p
	return &c, true, nil
}

// ClosePool marks the active pool completed, as the external draw would.
func (s *Store) ClosePool(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pools {
		if p.ID == id {
			p.Status = model.PoolCompleted
			return nil
		}
	}
	return repository.ErrRecordNotFound
}

// AddToActivePool adds amount to the active pool's total.
func (s *Store) AddToActivePool(_ context.Context, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.active()
	if p == nil {
		return repository.ErrNoActivePool
	}
	p.TotalAmount = p.TotalAmount.Add(amount)
	return nil
}

// GetEntry returns the user's entry in poolID or ErrRecordNotFound.
func (s *Store) GetEntry(_ context.Context, poolID, userUUID string) (*model.PrizeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryKey{pool: poolID, user: userUUID}]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	c := *e
	return &c, nil
}

// UpsertEntry inserts or replaces the user's entry.
func (s *Store) UpsertEntry(_ context.Context, e *model.PrizeEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pool *model.PrizePool
	for _, p := range s.pools {
		if p.ID == e.PoolID {
			pool = p
		}
	}
	if pool == nil {
		return false, repository.ErrRecordNotFound
	}

	now := s.now()
	key := entryKey{pool: e.PoolID, user: e.UserUUID}
	if existing, ok := s.entries[key]; ok {
		existing.Username = e.Username
		existing.InfluenceScore = e.InfluenceScore
		existing.Entries = e.Entries
		existing.UpdatedAt = now
		return false, nil
	}

	c := *e
	c.CreatedAt = now
	c.UpdatedAt = now
	s.entries[key] = &c
	pool.Entries++
	return true, nil
}

// ListEntries returns the entries of poolID, largest first.
func (s *Store) ListEntries(_ context.Context, poolID string, limit int) ([]*model.PrizeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.PrizeEntry
	for k, e := range s.entries {
		if k.pool == poolID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entries != out[j].Entries {
			return out[i].Entries > out[j].Entries
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
