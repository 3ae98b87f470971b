package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sort"
	"strconv"

	"github.com/microvest/backoffice/internal/audit"
	"github.com/microvest/backoffice/internal/models"
)

// ErrForbidden is returned when the acting user's role does not permit a
// ledger mutation. The check lives here, not in the router, so every caller
// gets it.
var ErrForbidden = errors.New("operation requires accountant or admin role")

// Actor identifies the user on whose behalf a posting runs.
type Actor struct {
	ID   int
	Role string
}

func (a Actor) canPost() bool {
	return a.Role == models.RoleAccountant || a.Role == models.RoleAdmin
}

// PostEntryInput is one proposed economic event.
type PostEntryInput struct {
	ReferenceType   models.ReferenceType
	RelatedEntityID *int
	Description     string
	Lines           []models.ProposedLine
}

// PostingService is the single writer for account balances. Journal entries
// and their lines are inserted together with the balance adjustments in one
// database transaction; nothing else in the codebase writes accounts.balance.
type PostingService struct {
	db    *sql.DB
	audit *audit.Logger
}

func NewPostingService(db *sql.DB) *PostingService {
	return &PostingService{
		db:    db,
		audit: audit.NewLogger(),
	}
}

// systemAccounts is the fixed bootstrap set. Injection, transfer and
// disbursement flows assume these codes exist; their absence is a recoverable
// error at posting time, not a startup invariant.
var systemAccounts = []struct {
	Name     string
	Category models.AccountCategory
	Code     string
}{
	{"Share Capital", models.CategoryEquity, models.CodeCapital},
	{"Main Bank", models.CategoryAsset, models.CodeBank},
	{"Petty Cash", models.CategoryAsset, models.CodeCash},
	{"Retained Earnings", models.CategoryEquity, models.CodeEquity},
	{"Loan Portfolio", models.CategoryAsset, models.CodePortfolio},
}

// systemAccountNames maps reserved codes to the display names used in
// user-facing "not found" messages.
var systemAccountNames = map[string]string{
	models.CodeCapital:   "Share Capital",
	models.CodeBank:      "Main Bank",
	models.CodeCash:      "Petty Cash",
	models.CodeEquity:    "Retained Earnings",
	models.CodePortfolio: "Loan Portfolio",
	models.CodeInterest:  "Interest Income",
}

// PostEntry validates and commits one balanced journal entry, adjusting the
// cached balance of every affected account in the same database transaction.
// On any failure nothing is committed.
func (s *PostingService) PostEntry(ctx context.Context, actor Actor, input PostEntryInput) (*models.JournalEntry, error) {
	if !actor.canPost() {
		return nil, ErrForbidden
	}
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &TransientStoreError{Op: "postEntry", Err: err}
	}
	defer tx.Rollback()

	accounts, err := lockAccounts(ctx, tx, lineAccountIDs(input.Lines))
	if err != nil {
		return nil, err
	}

	entry := &models.JournalEntry{
		ReferenceType:   input.ReferenceType,
		RelatedEntityID: input.RelatedEntityID,
		Description:     input.Description,
		CreatedBy:       actor.ID,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO journal_entries (reference_type, related_entity_id, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		string(input.ReferenceType), input.RelatedEntityID, input.Description, actor.ID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, &TransientStoreError{Op: "postEntry", Err: err}
	}

	deltas := make(map[int]int64)
	for _, line := range input.Lines {
		jl := models.JournalLine{
			EntryID:   entry.ID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO journal_lines (entry_id, account_id, debit, credit, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id, created_at`,
			entry.ID, line.AccountID, line.Debit, line.Credit,
		).Scan(&jl.ID, &jl.CreatedAt)
		if err != nil {
			return nil, &TransientStoreError{Op: "postEntry", Err: err}
		}
		entry.Lines = append(entry.Lines, jl)
		deltas[line.AccountID] += accounts[line.AccountID].SignedDelta(line.Debit, line.Credit)
	}

	// Apply balance deltas in the same sorted order used for locking.
	for _, id := range sortedKeys(deltas) {
		acct := accounts[id]
		if err := updateBalance(ctx, tx, acct, acct.Balance+deltas[id]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &TransientStoreError{Op: "postEntry", Err: err}
	}

	s.audit.LogPosting(entry.ID, string(input.ReferenceType), input.Lines)
	return entry, nil
}

// InitializeChartOfAccounts ensures the five system accounts exist, inserting
// only those missing by code. Safe to call repeatedly.
func (s *PostingService) InitializeChartOfAccounts(ctx context.Context, actor Actor) ([]models.Account, error) {
	if !actor.canPost() {
		return nil, ErrForbidden
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &TransientStoreError{Op: "initializeChartOfAccounts", Err: err}
	}
	defer tx.Rollback()

	var created []models.Account
	for _, sys := range systemAccounts {
		var existing int
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM accounts WHERE code = $1 AND is_system_account = true`,
			sys.Code).Scan(&existing)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return nil, &TransientStoreError{Op: "initializeChartOfAccounts", Err: err}
		}

		acct := models.Account{
			Name:            sys.Name,
			Category:        sys.Category,
			Code:            sys.Code,
			IsSystemAccount: true,
			Version:         1,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO accounts (name, category, code, balance, is_system_account, version, created_at, updated_at)
			VALUES ($1, $2, $3, 0, true, 1, NOW(), NOW())
			RETURNING id, created_at, updated_at`,
			sys.Name, string(sys.Category), sys.Code,
		).Scan(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt)
		if err != nil {
			return nil, &TransientStoreError{Op: "initializeChartOfAccounts", Err: err}
		}
		created = append(created, acct)
	}

	if err := tx.Commit(); err != nil {
		return nil, &TransientStoreError{Op: "initializeChartOfAccounts", Err: err}
	}

	if len(created) > 0 {
		log.Printf("[LEDGER] Chart of accounts bootstrap created %d system accounts", len(created))
	}
	return created, nil
}

// AccountBalance returns the cached balance projection for one account.
func (s *PostingService) AccountBalance(ctx context.Context, accountID int) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, accountNotFound(accountID)
	}
	if err != nil {
		return 0, &TransientStoreError{Op: "accountBalance", Err: err}
	}
	return balance, nil
}

// AccountByCode resolves one of the reserved system codes, returning a
// NotFoundError with the account's display name when it is absent so the UI
// can direct the user to run the bootstrap.
func (s *PostingService) AccountByCode(ctx context.Context, code string) (*models.Account, error) {
	var acct models.Account
	var bankName, accountNumber sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, code, bank_name, account_number, balance, is_system_account, version
		FROM accounts WHERE code = $1
		ORDER BY is_system_account DESC, id
		LIMIT 1`, code,
	).Scan(&acct.ID, &acct.Name, &acct.Category, &acct.Code, &bankName, &accountNumber,
		&acct.Balance, &acct.IsSystemAccount, &acct.Version)
	if err == sql.ErrNoRows {
		name := systemAccountNames[code]
		if name == "" {
			name = code
		}
		return nil, &NotFoundError{Kind: "account", Name: name}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "accountByCode", Err: err}
	}
	acct.BankName = bankName.String
	acct.AccountNumber = accountNumber.String
	return &acct, nil
}

// ReconcileAccountBalance recomputes an account's balance from the full line
// history and repairs the cached projection if it has drifted. Returns the
// recomputed balance and the drift that was corrected (zero when consistent).
func (s *PostingService) ReconcileAccountBalance(ctx context.Context, accountID int) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, &TransientStoreError{Op: "reconcile", Err: err}
	}
	defer tx.Rollback()

	accounts, err := lockAccounts(ctx, tx, []int{accountID})
	if err != nil {
		return 0, 0, err
	}
	acct := accounts[accountID]

	var debits, credits int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0)
		FROM journal_lines WHERE account_id = $1`, accountID,
	).Scan(&debits, &credits)
	if err != nil {
		return 0, 0, &TransientStoreError{Op: "reconcile", Err: err}
	}

	recomputed := acct.SignedDelta(debits, credits)
	drift := acct.Balance - recomputed
	if drift != 0 {
		log.Printf("[LEDGER] Balance drift on account %d: cached %d, recomputed %d", accountID, acct.Balance, recomputed)
		if err := updateBalance(ctx, tx, acct, recomputed); err != nil {
			return 0, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, &TransientStoreError{Op: "reconcile", Err: err}
	}
	return recomputed, drift, nil
}

// validateLines enforces the posting invariants before any write: at least
// two lines, exactly one positive side per line, and debits equal to credits
// in total. Amounts are exact minor-unit integers; no float comparison.
func validateLines(lines []models.ProposedLine) error {
	if len(lines) < 2 {
		return validationErrorf("journal entry requires at least 2 lines, got %d", len(lines))
	}

	var totalDebit, totalCredit int64
	for i, line := range lines {
		if line.Debit < 0 || line.Credit < 0 {
			return validationErrorf("line %d: amounts must not be negative", i+1)
		}
		hasDebit := line.Debit > 0
		hasCredit := line.Credit > 0
		if hasDebit == hasCredit {
			return validationErrorf("line %d: exactly one of debit or credit must be positive", i+1)
		}
		totalDebit += line.Debit
		totalCredit += line.Credit
	}

	if totalDebit != totalCredit {
		return validationErrorf("entry is not balanced: debits %d != credits %d", totalDebit, totalCredit)
	}
	return nil
}

func lineAccountIDs(lines []models.ProposedLine) []int {
	seen := make(map[int]bool, len(lines))
	var ids []int
	for _, line := range lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			ids = append(ids, line.AccountID)
		}
	}
	return ids
}

// lockAccounts fetches the referenced accounts FOR UPDATE in ascending id
// order to prevent deadlocks between concurrent postings.
func lockAccounts(ctx context.Context, tx *sql.Tx, ids []int) (map[int]*models.Account, error) {
	sort.Ints(ids)

	accounts := make(map[int]*models.Account, len(ids))
	for _, id := range ids {
		var acct models.Account
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, category, code, balance, version
			FROM accounts WHERE id = $1
			FOR UPDATE`, id,
		).Scan(&acct.ID, &acct.Name, &acct.Category, &acct.Code, &acct.Balance, &acct.Version)
		if err == sql.ErrNoRows {
			return nil, accountNotFound(id)
		}
		if err != nil {
			return nil, &TransientStoreError{Op: "lockAccounts", Err: err}
		}
		accounts[id] = &acct
	}
	return accounts, nil
}

func updateBalance(ctx context.Context, tx *sql.Tx, acct *models.Account, newBalance int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		newBalance, acct.ID, acct.Version)
	if err != nil {
		return &TransientStoreError{Op: "updateBalance", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &TransientStoreError{Op: "updateBalance", Err: err}
	}
	if rows == 0 {
		return &TransientStoreError{Op: "updateBalance", Err: errors.New("optimistic lock failed for account " + acct.Name)}
	}
	return nil
}

func accountNotFound(id int) *NotFoundError {
	return &NotFoundError{Kind: "account", Name: "id " + strconv.Itoa(id)}
}

func sortedKeys(m map[int]int64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
