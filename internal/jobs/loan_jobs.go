package jobs

import (
	"context"
	"log"
)

// MarkOverdueLoans flags active loans past their due date.
func (jr *JobRunner) MarkOverdueLoans() {
	jr.runWithRecovery("MarkOverdueLoans", func() {
		ctx := context.Background()

		count, err := jr.loans.MarkOverdueLoans(ctx)
		if err != nil {
			log.Printf("[JOBS] Failed to mark overdue loans: %v", err)
			return
		}
		log.Printf("[JOBS] Marked %d loans overdue", count)
	})
}

// SendRepaymentReminders emails the originating loan officer for every loan
// due within the next seven days, and drops an in-app notification.
func (jr *JobRunner) SendRepaymentReminders() {
	jr.runWithRecovery("SendRepaymentReminders", func() {
		ctx := context.Background()

		rows, err := jr.db.QueryContext(ctx, `
			SELECT l.id, l.outstanding_principal, l.created_by,
			       u.email, u.first_name || ' ' || u.last_name
			FROM loans l
			JOIN users u ON u.id = l.created_by
			WHERE l.status IN ('ACTIVE', 'OVERDUE')
			  AND l.outstanding_principal > 0
			  AND l.due_date < NOW() + INTERVAL '7 days'`)
		if err != nil {
			log.Printf("[JOBS] Failed to query loans for reminders: %v", err)
			return
		}
		defer rows.Close()

		sent := 0
		for rows.Next() {
			var loanID, officerID int
			var outstanding int64
			var email, name string
			if err := rows.Scan(&loanID, &outstanding, &officerID, &email, &name); err != nil {
				log.Printf("[JOBS] Failed to scan reminder row: %v", err)
				continue
			}

			if err := jr.notify.SendRepaymentReminder(email, name, loanID, outstanding); err != nil {
				log.Printf("[JOBS] Reminder email failed for loan %d: %v", loanID, err)
				continue
			}
			jr.notify.NotifyUser(ctx, officerID, "REPAYMENT",
				"Repayment due soon", "A loan you originated has an instalment coming due")
			sent++
		}
		if err := rows.Err(); err != nil {
			log.Printf("[JOBS] Error iterating reminder rows: %v", err)
			return
		}

		log.Printf("[JOBS] Sent %d repayment reminders", sent)
	})
}

// CleanupCollectionCodes removes expired and long-spent collection codes.
func (jr *JobRunner) CleanupCollectionCodes() {
	jr.runWithRecovery("CleanupCollectionCodes", func() {
		if err := jr.collections.CleanupExpiredCodes(context.Background()); err != nil {
			log.Printf("[JOBS] Collection code cleanup failed: %v", err)
		}
	})
}
