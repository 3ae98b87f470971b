package jobs

import (
	"context"
	"log"
)

// SweepBalanceDrift recomputes every account's cached balance from its
// journal lines and repairs any drift. Drift here means a bug elsewhere, so
// each repaired account is logged loudly.
func (jr *JobRunner) SweepBalanceDrift() {
	jr.runWithRecovery("SweepBalanceDrift", func() {
		ctx := context.Background()

		rows, err := jr.db.QueryContext(ctx, `SELECT id, name FROM accounts ORDER BY id`)
		if err != nil {
			log.Printf("[JOBS] Failed to list accounts for drift sweep: %v", err)
			return
		}
		defer rows.Close()

		type account struct {
			id   int
			name string
		}
		var accounts []account
		for rows.Next() {
			var a account
			if err := rows.Scan(&a.id, &a.name); err != nil {
				log.Printf("[JOBS] Failed to scan account row: %v", err)
				continue
			}
			accounts = append(accounts, a)
		}
		if err := rows.Err(); err != nil {
			log.Printf("[JOBS] Error iterating accounts: %v", err)
			return
		}

		repaired := 0
		for _, a := range accounts {
			recomputed, drift, err := jr.posting.ReconcileAccountBalance(ctx, a.id)
			if err != nil {
				log.Printf("[JOBS] Reconciliation failed for account %d (%s): %v", a.id, a.name, err)
				continue
			}
			if drift != 0 {
				log.Printf("[JOBS] DRIFT REPAIRED: account %d (%s) was off by %d, now %d", a.id, a.name, drift, recomputed)
				repaired++
			}
		}

		log.Printf("[JOBS] Drift sweep done: %d accounts checked, %d repaired", len(accounts), repaired)
	})
}

// SnapshotRetainedEarnings logs accumulated income-minus-expense movement at
// month end. The journal stays the source of truth; the snapshot gives the
// audit trail a monthly figure to check statements against.
func (jr *JobRunner) SnapshotRetainedEarnings() {
	jr.runWithRecovery("SnapshotRetainedEarnings", func() {
		ctx := context.Background()

		var income, expense int64
		err := jr.db.QueryRowContext(ctx, `
			SELECT
			  COALESCE(SUM(CASE WHEN a.category = 'income' THEN l.credit - l.debit ELSE 0 END), 0),
			  COALESCE(SUM(CASE WHEN a.category = 'expense' THEN l.debit - l.credit ELSE 0 END), 0)
			FROM journal_lines l
			JOIN accounts a ON a.id = l.account_id
			WHERE a.category IN ('income', 'expense')`,
		).Scan(&income, &expense)
		if err != nil {
			log.Printf("[JOBS] Retained earnings snapshot failed: %v", err)
			return
		}

		log.Printf("[JOBS] Retained earnings snapshot: income %d, expenses %d, retained %d",
			income, expense, income-expense)
	})
}
