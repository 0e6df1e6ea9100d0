// Package reconcile runs periodic housekeeping: the ledger balance check
// and rate limiter eviction.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/metrics"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// LimiterIdle is how long a client may stay quiet before its limiter is dropped.
const LimiterIdle = 30 * time.Minute

type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]models.Reconciliation, error)
}

type Sweeper interface {
	Cleanup(idle time.Duration) int
}

type Scheduler struct {
	cron    *cron.Cron
	ledger  Reconciler
	sweeper Sweeper
	log     *zap.Logger
}

// NewScheduler registers the ledger check on schedule (standard cron syntax
// or a descriptor like "@every 15m") and the limiter sweep every five
// minutes. sweeper may be nil.
func NewScheduler(schedule string, ledger Reconciler, sweeper Sweeper, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ledger:  ledger,
		sweeper: sweeper,
		log:     log,
	}
	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule reconciliation %q: %w", schedule, err)
	}
	if sweeper != nil {
		if _, err := s.cron.AddFunc("@every 5m", s.sweep); err != nil {
			return nil, fmt.Errorf("schedule limiter sweep: %w", err)
		}
	}
	return s, nil
}

// RunOnce checks every balance against its ledger and returns the number of
// users that disagree.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	bad, err := s.ledger.ReconcileAll(ctx)
	metrics.RecordReconciliation(len(bad), err)
	if err != nil {
		s.log.Error("reconciliation failed", zap.Error(err))
		return 0, err
	}
	if len(bad) > 0 {
		s.log.Error("ledger reconciliation found imbalances", zap.Int("users", len(bad)))
	} else {
		s.log.Debug("ledger reconciled", zap.Duration("took", time.Since(start)))
	}
	return len(bad), nil
}

func (s *Scheduler) sweep() {
	if n := s.sweeper.Cleanup(LimiterIdle); n > 0 {
		s.log.Debug("rate limiters evicted", zap.Int("count", n))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}
