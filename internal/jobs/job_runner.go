package jobs

import (
	"database/sql"
	"log"

	"github.com/microvest/backoffice/internal/services"
)

// JobRunner coordinates all scheduled jobs.
type JobRunner struct {
	db          *sql.DB
	loans       *services.LoanService
	posting     *services.PostingService
	collections *services.CollectionService
	notify      *services.NotificationService
}

func NewJobRunner(db *sql.DB, loans *services.LoanService, posting *services.PostingService,
	collections *services.CollectionService, notify *services.NotificationService) *JobRunner {
	return &JobRunner{
		db:          db,
		loans:       loans,
		posting:     posting,
		collections: collections,
		notify:      notify,
	}
}

// runWithRecovery wraps job execution with panic recovery so one bad job
// cannot take the scheduler down.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[JOBS] %s panicked: %v", jobName, r)
		}
	}()

	log.Printf("[JOBS] Starting %s", jobName)
	jobFunc()
	log.Printf("[JOBS] Completed %s", jobName)
}

// RunAllNightlyJobs runs every nightly job once, for manual execution.
func (jr *JobRunner) RunAllNightlyJobs() {
	jr.MarkOverdueLoans()
	jr.SendRepaymentReminders()
	jr.CleanupCollectionCodes()
	jr.SweepBalanceDrift()
}
