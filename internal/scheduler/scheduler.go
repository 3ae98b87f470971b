package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/microvest/backoffice/internal/jobs"
)

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}
	s.registerJobs()
	return s
}

func (s *Scheduler) registerJobs() {
	schedule := func(key, fallback string) string {
		if v := viper.GetString(key); v != "" {
			return v
		}
		return fallback
	}

	// Nightly jobs
	if _, err := s.cron.AddFunc(schedule("scheduler.mark_overdue_loans", "0 1 * * *"), s.jobs.MarkOverdueLoans); err != nil {
		log.Printf("[SCHED] Failed to register MarkOverdueLoans: %v", err)
	}
	if _, err := s.cron.AddFunc(schedule("scheduler.repayment_reminders", "0 8 * * *"), s.jobs.SendRepaymentReminders); err != nil {
		log.Printf("[SCHED] Failed to register SendRepaymentReminders: %v", err)
	}
	if _, err := s.cron.AddFunc(schedule("scheduler.cleanup_collection_codes", "30 1 * * *"), s.jobs.CleanupCollectionCodes); err != nil {
		log.Printf("[SCHED] Failed to register CleanupCollectionCodes: %v", err)
	}

	// Weekly integrity sweep
	if _, err := s.cron.AddFunc(schedule("scheduler.balance_drift_sweep", "0 3 * * 0"), s.jobs.SweepBalanceDrift); err != nil {
		log.Printf("[SCHED] Failed to register SweepBalanceDrift: %v", err)
	}

	// Monthly retained earnings snapshot, first of the month
	if _, err := s.cron.AddFunc(schedule("scheduler.retained_earnings_snapshot", "0 2 1 * *"), s.jobs.SnapshotRetainedEarnings); err != nil {
		log.Printf("[SCHED] Failed to register SnapshotRetainedEarnings: %v", err)
	}

	log.Printf("[SCHED] All cron jobs registered")
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[SCHED] Cron scheduler started")
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("[SCHED] Cron scheduler stopped")
}
