// Package daily runs the wall-clock triggers: one distribution at a
// fixed local time each day and a reconciliation sweep on an interval.
package daily

import (
	"context"
	"time"

	problemsvc "acmdaily/internal/problem/service"
	scoresvc "acmdaily/internal/score/service"
	pkgerrors "acmdaily/pkg/errors"
	"acmdaily/pkg/utils/logger"

	"go.uber.org/zap"
)

// SchedulerConfig holds trigger timing.
type SchedulerConfig struct {
	// DistributeAt is the local wall-clock time of the daily
	// distribution, "15:04" format.
	DistributeAt string

	// ReconcileEvery is the sweep interval between reconciliation
	// passes.
	ReconcileEvery time.Duration

	// Now exists for deterministic tests.
	Now func() time.Time
}

const distributeAtLayout = "15:04"

// Scheduler drives distribution and reconciliation on the clock.
// Both triggers stay exposed over HTTP as well; the pass lock and the
// distribution's all-or-nothing check keep a concurrent manual trigger
// harmless.
type Scheduler struct {
	pool       *problemsvc.PoolService
	reconciler *scoresvc.ReconcileService
	cfg        SchedulerConfig
}

// NewScheduler creates a new Scheduler.
func NewScheduler(pool *problemsvc.PoolService, reconciler *scoresvc.ReconcileService, cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.DistributeAt == "" {
		cfg.DistributeAt = "08:00"
	}
	if _, err := time.Parse(distributeAtLayout, cfg.DistributeAt); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.InvalidParams, "invalid distribution time %q", cfg.DistributeAt)
	}
	if cfg.ReconcileEvery == 0 {
		cfg.ReconcileEvery = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{pool: pool, reconciler: reconciler, cfg: cfg}, nil
}

// Run blocks until ctx is cancelled, firing the triggers on schedule.
func (s *Scheduler) Run(ctx context.Context) {
	go s.runDistribution(ctx)
	s.runReconciliation(ctx)
}

func (s *Scheduler) runDistribution(ctx context.Context) {
	for {
		wait := s.untilNextDistribution()
		timer := time.NewTimer(wait)
		logger.Info(ctx, "next distribution scheduled", zap.Duration("in", wait))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.pool.DistributeDaily(ctx); err != nil {
			logger.Error(ctx, "scheduled distribution failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) runReconciliation(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReconcileEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.reconciler.Reconcile(ctx); err != nil {
			logger.Error(ctx, "scheduled reconciliation failed", zap.Error(err))
		}
	}
}

// untilNextDistribution returns the wait until the next occurrence of
// the configured wall-clock time, always strictly positive so a trigger
// never double-fires within one minute.
func (s *Scheduler) untilNextDistribution() time.Duration {
	at, _ := time.Parse(distributeAtLayout, s.cfg.DistributeAt)
	now := s.cfg.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
