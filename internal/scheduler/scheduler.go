package scheduler

import (
	"context"

	"invest-ledger/config"
	"invest-ledger/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Lock names, shared with the manual admin triggers so a manual run and a
// scheduled tick never overlap.
const (
	LockProfitAccrual   = "profit-accrual"
	LockSettlementSweep = "settlement-sweep"
	LockExpirySweep     = "expiry-sweep"
)

// Scheduler drives the three background sweeps on cron cadences. Each tick
// takes a Redis lock first so only one worker in the fleet runs a given
// sweep; the sweeps' own status preconditions make a missed lock harmless.
type Scheduler struct {
	cron        *cron.Cron
	cfg         config.SchedulerConfig
	lock        ports.SweepLock
	accrualSvc  ports.AccrualService
	settleSvc   ports.SettlementService
	transferSvc ports.TransferService
	log         zerolog.Logger
}

// New creates a Scheduler with the three sweep jobs registered.
func New(
	cfg config.SchedulerConfig,
	lock ports.SweepLock,
	accrualSvc ports.AccrualService,
	settleSvc ports.SettlementService,
	transferSvc ports.TransferService,
	log zerolog.Logger,
) (*Scheduler, error) {
	s := &Scheduler{
		cron:        cron.New(),
		cfg:         cfg,
		lock:        lock,
		accrualSvc:  accrualSvc,
		settleSvc:   settleSvc,
		transferSvc: transferSvc,
		log:         log,
	}

	jobs := []struct {
		spec string
		run  func()
	}{
		{cfg.AccrualSpec, s.runAccrual},
		{cfg.SettlementSpec, s.runSettlement},
		{cfg.ExpirySpec, s.runExpiry},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins scheduling. No-op ticks are cheap; the sweeps select only
// records in their precondition state.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().
		Str("accrual_spec", s.cfg.AccrualSpec).
		Str("settlement_spec", s.cfg.SettlementSpec).
		Str("expiry_spec", s.cfg.ExpirySpec).
		Msg("scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runAccrual() {
	s.guarded(LockProfitAccrual, func(ctx context.Context) (int, error) {
		return s.accrualSvc.RunProfitAccrual(ctx)
	})
}

func (s *Scheduler) runSettlement() {
	s.guarded(LockSettlementSweep, func(ctx context.Context) (int, error) {
		return s.settleSvc.RunSettlementSweep(ctx)
	})
}

func (s *Scheduler) runExpiry() {
	s.guarded(LockExpirySweep, func(ctx context.Context) (int, error) {
		return s.transferSvc.SweepExpired(ctx)
	})
}

// guarded runs one sweep under its named Redis lock. Losing the lock means
// another worker has this tick; skip quietly.
func (s *Scheduler) guarded(name string, run func(context.Context) (int, error)) {
	ctx := context.Background()

	ok, err := s.lock.Acquire(ctx, name, s.cfg.LockTTL)
	if err != nil {
		s.log.Error().Err(err).Str("sweep", name).Msg("failed to acquire sweep lock")
		return
	}
	if !ok {
		s.log.Debug().Str("sweep", name).Msg("sweep lock held elsewhere, skipping tick")
		return
	}
	defer func() {
		if err := s.lock.Release(ctx, name); err != nil {
			s.log.Warn().Err(err).Str("sweep", name).Msg("failed to release sweep lock")
		}
	}()

	processed, err := run(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("sweep", name).Msg("sweep run failed")
		return
	}
	if processed > 0 {
		s.log.Info().Str("sweep", name).Int("processed", processed).Msg("sweep run finished")
	}
}
