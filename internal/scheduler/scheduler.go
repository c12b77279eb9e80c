// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"santapot/internal/model"
)

const jobTimeout = 30 * time.Second

// PoolEnsurer creates the active prize pool when none exists.
type PoolEnsurer interface {
	EnsureActivePool(ctx context.Context) (*model.PrizePool, error)
}

// Broadcaster publishes live stats to subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context)
}

// Config holds the cron specs for each job. An empty spec disables the job.
type Config struct {
	PoolSchedule  string
	StatsSchedule string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron  *cron.Cron
	cfg   Config
	pools PoolEnsurer
	stats Broadcaster
}

// New creates a scheduler. Panicking jobs are recovered and logged.
func New(cfg Config, pools PoolEnsurer, stats Broadcaster) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})))
	return &Scheduler{cron: c, cfg: cfg, pools: pools, stats: stats}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if err := s.add("ensure_active_pool", s.cfg.PoolSchedule, s.EnsurePool); err != nil {
		return err
	}
	if err := s.add("broadcast_stats", s.cfg.StatsSchedule, s.BroadcastStats); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) add(name, spec string, job func()) error {
	if spec == "" {
		log.Info().Str("job", name).Msg("Job disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		log.Error().Err(err).Str("job", name).Str("schedule", spec).Msg("Failed to schedule job")
		return err
	}
	log.Info().Str("job", name).Str("schedule", spec).Msg("Scheduled job")
	return nil
}

// Stop stops the scheduler and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// EnsurePool runs one prize pool bootstrap.
func (s *Scheduler) EnsurePool() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.pools.EnsureActivePool(ctx); err != nil {
		log.Error().Err(err).Str("job", "ensure_active_pool").Msg("Job failed")
	}
}

// BroadcastStats publishes one live stats update.
func (s *Scheduler) BroadcastStats() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.stats.Broadcast(ctx)
}

// cronLogger adapts cron's logger to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
