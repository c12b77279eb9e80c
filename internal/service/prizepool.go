package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/metrics"
	"santapot/internal/model"
	"santapot/internal/pkg/lock"
	"santapot/internal/pubsub"
	"santapot/internal/repository"
	"santapot/internal/rewards"
)

// TicketPolicy decides what happens when an account that already holds an
// entry in the active pool is re-confirmed eligible.
type TicketPolicy string

const (
	// TicketsFreeze keeps the ticket count set at first entry.
	TicketsFreeze TicketPolicy = "freeze"
	// TicketsTrack recomputes tickets whenever the influence score changed.
	TicketsTrack TicketPolicy = "track"
)

// PoolDefaults are used when a new active pool has to be created.
type PoolDefaults struct {
	Name      string
	DrawAfter time.Duration
	Seed      decimal.Decimal
}

// PrizePoolService allocates sweepstakes tickets in the active pool.
type PrizePoolService struct {
	pots     PotStore
	locks    *lock.KeyLock
	policy   TicketPolicy
	divisor  int64
	defaults PoolDefaults
	pub      Publisher
	now      func() time.Time
}

// NewPrizePoolService creates a new PrizePoolService.
func NewPrizePoolService(pots PotStore, locks *lock.KeyLock, policy TicketPolicy, divisor int64, defaults PoolDefaults, pub Publisher, now func() time.Time) *PrizePoolService {
	if pub == nil {
		pub = noopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if policy == "" {
		policy = TicketsFreeze
	}
	return &PrizePoolService{
		pots:     pots,
		locks:    locks,
		policy:   policy,
		divisor:  divisor,
		defaults: defaults,
		pub:      pub,
		now:      now,
	}
}

// Policy returns the configured ticket policy.
func (s *PrizePoolService) Policy() TicketPolicy {
	return s.policy
}

// EnsureActivePool returns the active pool, creating one from the defaults
// if none exists. Safe to call concurrently and repeatedly.
func (s *PrizePoolService) EnsureActivePool(ctx context.Context) (*model.PrizePool, error) {
	drawDate := s.now().Add(s.defaults.DrawAfter).UTC()
	p, created, err := s.pots.EnsureActivePool(ctx, s.defaults.Name, drawDate, s.defaults.Seed)
	if err != nil {
		log.Error().Err(err).Str("operation", "ensure_active_pool").Msg("Failed to ensure active prize pool")
		return nil, storeErr("ensure active pool", err)
	}
	if created {
		log.Info().
			Str("pool_id", p.ID).
			Str("name", p.Name).
			Time("draw_date", p.DrawDate).
			Msg("Created active prize pool")
		publish(ctx, s.pub, pubsub.TopicPool, p)
	}
	return p, nil
}

// ActivePool returns the active pool without creating one.
func (s *PrizePoolService) ActivePool(ctx context.Context) (*model.PrizePool, error) {
	p, err := s.pots.ActivePool(ctx)
	if err != nil {
		return nil, storeErr("get active pool", err)
	}
	return p, nil
}

// Leaderboard returns the largest entries of the active pool.
func (s *PrizePoolService) Leaderboard(ctx context.Context, limit int) (*model.PrizePool, []*model.PrizeEntry, error) {
	p, err := s.ActivePool(ctx)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.pots.ListEntries(ctx, p.ID, limit)
	if err != nil {
		return nil, nil, storeErr("list entries", err)
	}
	return p, entries, nil
}

// Enter gives the account max(1, floor(score/divisor)) tickets in the active
// pool. Under TicketsFreeze an existing entry is returned unchanged.
func (s *PrizePoolService) Enter(ctx context.Context, uuid, username string, score decimal.Decimal) (*model.PrizeEntry, error) {
	var entry *model.PrizeEntry
	err := s.locks.WithLockContext(ctx, "entry:"+uuid, func() error {
		p, err := s.EnsureActivePool(ctx)
		if err != nil {
			return err
		}

		existing, err := s.pots.GetEntry(ctx, p.ID, uuid)
		switch {
		case err == nil:
			if s.policy == TicketsFreeze || existing.InfluenceScore.Equal(score) {
				entry = existing
				return nil
			}
		case errors.Is(err, repository.ErrRecordNotFound):
		default:
			return storeErr("get prize entry", err)
		}

		e := &model.PrizeEntry{
			PoolID:         p.ID,
			UserUUID:       uuid,
			Username:       username,
			InfluenceScore: score,
			Entries:        rewards.Tickets(score, s.divisor),
		}
		created, err := s.pots.UpsertEntry(ctx, e)
		if err != nil {
			return storeErr("upsert prize entry", err)
		}

		action := "updated"
		if created {
			action = "created"
			p.Entries++
			publish(ctx, s.pub, pubsub.TopicPool, p)
		}
		metrics.Ledger().ObservePrizeEntry(action)
		log.Info().
			Str("uuid", uuid).
			Str("pool_id", p.ID).
			Int64("entries", e.Entries).
			Str("influence_score", score.String()).
			Str("action", action).
			Msg("Prize pool entry written")

		entry = e
		return nil
	})
	if err != nil {
		log.Error().Err(err).
			Str("operation", "enter_prize_pool").
			Str("uuid", uuid).
			Str("influence_score", score.String()).
			Msg("Failed to enter prize pool")
		return nil, fmt.Errorf("failed to enter prize pool: %w", err)
	}
	return entry, nil
}
