package services

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/microvest/backoffice/internal/models"
)

// ReportService derives summary figures from the accumulated journal. All
// operations are read-only; period queries use half-open [start, end) ranges
// so month boundaries are counted exactly once regardless of month length.
type ReportService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// IncomeStatement is revenue and expense movement for one month.
type IncomeStatement struct {
	Period    string `json:"period"`
	Revenue   int64  `json:"revenue"`
	Expenses  int64  `json:"expenses"`
	NetProfit int64  `json:"netProfit"`
}

// BalanceSheetReport is the position as of a date. LoanPortfolio is supplied
// by the loan subsystem (outstanding principal over active loans), not read
// from the ledger.
type BalanceSheetReport struct {
	AsOf             string `json:"asOf"`
	LiquidAssets     int64  `json:"liquidAssets"`
	LoanPortfolio    int64  `json:"loanPortfolio"`
	TotalAssets      int64  `json:"totalAssets"`
	Liabilities      int64  `json:"liabilities"`
	Equity           int64  `json:"equity"`
	RetainedEarnings int64  `json:"retainedEarnings"`
	TotalLiabEquity  int64  `json:"totalLiabilitiesAndEquity"`
}

// monthRange converts a "2006-01" period into the half-open interval
// [first of month, first of next month).
func monthRange(period string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, validationErrorf("invalid period %q, expected YYYY-MM", period)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// MonthlyIncomeStatement aggregates income and expense lines for one month.
// A month with no postings reports zeros.
func (rs *ReportService) MonthlyIncomeStatement(ctx context.Context, period string) (*IncomeStatement, error) {
	start, end, err := monthRange(period)
	if err != nil {
		return nil, err
	}

	stmt := &IncomeStatement{Period: period}
	rows, err := rs.db.QueryContext(ctx, `
		SELECT a.category,
		       COALESCE(SUM(l.debit), 0),
		       COALESCE(SUM(l.credit), 0)
		FROM journal_lines l
		JOIN accounts a ON a.id = l.account_id
		WHERE a.category IN ('income', 'expense')
		  AND l.created_at >= $1 AND l.created_at < $2
		GROUP BY a.category`, start, end)
	if err != nil {
		return nil, &TransientStoreError{Op: "incomeStatement", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var category models.AccountCategory
		var debits, credits int64
		if err := rows.Scan(&category, &debits, &credits); err != nil {
			return nil, &TransientStoreError{Op: "incomeStatement", Err: err}
		}
		switch category {
		case models.CategoryIncome:
			stmt.Revenue = credits - debits
		case models.CategoryExpense:
			stmt.Expenses = debits - credits
		}
	}

	stmt.NetProfit = stmt.Revenue - stmt.Expenses
	return stmt, nil
}

// BalanceSheet reports the position as of a date. Retained earnings is the
// accumulated income-minus-expense movement, so assets always equal
// liabilities plus equity for a consistent line history.
func (rs *ReportService) BalanceSheet(ctx context.Context, asOf time.Time, loanPortfolio int64) (*BalanceSheetReport, error) {
	report := &BalanceSheetReport{
		AsOf:          asOf.Format("2006-01-02"),
		LoanPortfolio: loanPortfolio,
	}

	rows, err := rs.db.QueryContext(ctx, `
		SELECT a.category, a.code,
		       COALESCE(SUM(l.debit), 0),
		       COALESCE(SUM(l.credit), 0)
		FROM accounts a
		LEFT JOIN journal_lines l ON l.account_id = a.id AND l.created_at < $1
		GROUP BY a.category, a.code`, asOf.AddDate(0, 0, 1))
	if err != nil {
		return nil, &TransientStoreError{Op: "balanceSheet", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var category models.AccountCategory
		var code string
		var debits, credits int64
		if err := rows.Scan(&category, &code, &debits, &credits); err != nil {
			return nil, &TransientStoreError{Op: "balanceSheet", Err: err}
		}
		switch category {
		case models.CategoryAsset:
			// The loan portfolio figure comes from the loan subsystem;
			// skip the ledger's own portfolio account to avoid double
			// counting.
			if code != models.CodePortfolio {
				report.LiquidAssets += debits - credits
			}
		case models.CategoryLiability:
			report.Liabilities += credits - debits
		case models.CategoryEquity:
			report.Equity += credits - debits
		case models.CategoryIncome:
			report.RetainedEarnings += credits - debits
		case models.CategoryExpense:
			report.RetainedEarnings -= debits - credits
		}
	}

	report.TotalAssets = report.LiquidAssets + report.LoanPortfolio
	report.TotalLiabEquity = report.Liabilities + report.Equity + report.RetainedEarnings
	return report, nil
}

// TotalLiquidity sums the balances of the money-holding asset accounts.
func (rs *ReportService) TotalLiquidity(ctx context.Context) (int64, error) {
	var total int64
	err := rs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0)
		FROM accounts
		WHERE category = 'asset' AND code IN ('CASH', 'BANK', 'MOBILE')`,
	).Scan(&total)
	if err != nil {
		return 0, &TransientStoreError{Op: "totalLiquidity", Err: err}
	}
	return total, nil
}

// BudgetVariance compares actual category movement for a month against the
// budgeted amount. A zero budget leaves Percentage nil: the ratio is
// undefined, not an error.
func (rs *ReportService) BudgetVariance(ctx context.Context, category models.AccountCategory, month string) (*models.BudgetVariance, error) {
	start, end, err := monthRange(month)
	if err != nil {
		return nil, err
	}

	variance := &models.BudgetVariance{Category: category, Month: month}

	err = rs.db.QueryRowContext(ctx, `
		SELECT COALESCE(amount, 0) FROM budgets
		WHERE category = $1 AND month = $2`,
		string(category), start,
	).Scan(&variance.Budgeted)
	if err != nil && err != sql.ErrNoRows {
		return nil, &TransientStoreError{Op: "budgetVariance", Err: err}
	}

	var debits, credits int64
	err = rs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM journal_lines l
		JOIN accounts a ON a.id = l.account_id
		WHERE a.category = $1
		  AND l.created_at >= $2 AND l.created_at < $3`,
		string(category), start, end,
	).Scan(&debits, &credits)
	if err != nil {
		return nil, &TransientStoreError{Op: "budgetVariance", Err: err}
	}

	acct := &models.Account{Category: category}
	variance.Actual = acct.SignedDelta(debits, credits)
	variance.Variance = variance.Actual - variance.Budgeted

	if variance.Budgeted != 0 {
		pct := decimal.NewFromInt(variance.Actual).
			Div(decimal.NewFromInt(variance.Budgeted)).
			Mul(decimal.NewFromInt(100)).
			StringFixed(1)
		variance.Percentage = &pct
	}
	return variance, nil
}

// GetIncomeStatement handles the income statement report
// @Summary Monthly income statement
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param period query string true "Month (YYYY-MM)"
// @Success 200 {object} IncomeStatement
// @Failure 400 {object} ErrorResponse
// @Router /reports/income-statement [get]
func (rs *ReportService) GetIncomeStatement(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = time.Now().Format("2006-01")
	}

	stmt, err := rs.MonthlyIncomeStatement(r.Context(), period)
	if err != nil {
		rs.sendReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stmt)
}

// GetBalanceSheet handles the balance sheet report
// @Summary Balance sheet
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param asOf query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} BalanceSheetReport
// @Failure 400 {object} ErrorResponse
// @Router /reports/balance-sheet [get]
func (rs *ReportService) GetBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			SendErrorResponse(w, "Invalid asOf date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		asOf = parsed
	}

	var portfolio int64
	err := rs.db.QueryRowContext(r.Context(), `
		SELECT COALESCE(SUM(outstanding_principal), 0)
		FROM loans WHERE status IN ('ACTIVE', 'OVERDUE')`,
	).Scan(&portfolio)
	if err != nil {
		rs.sendReportError(w, &TransientStoreError{Op: "balanceSheet", Err: err})
		return
	}

	report, err := rs.BalanceSheet(r.Context(), asOf, portfolio)
	if err != nil {
		rs.sendReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// GetTotalLiquidity handles the liquidity figure
// @Summary Total liquidity
// @Description Sum of cash, bank and mobile money balances
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{totalLiquidity=int64}
// @Router /reports/liquidity [get]
func (rs *ReportService) GetTotalLiquidity(w http.ResponseWriter, r *http.Request) {
	total, err := rs.TotalLiquidity(r.Context())
	if err != nil {
		rs.sendReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"totalLiquidity": total})
}

// GetBudgetVariance handles the budget variance report
// @Summary Budget variance
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param category query string true "Account category"
// @Param month query string true "Month (YYYY-MM)"
// @Success 200 {object} models.BudgetVariance
// @Failure 400 {object} ErrorResponse
// @Router /reports/budget-variance [get]
func (rs *ReportService) GetBudgetVariance(w http.ResponseWriter, r *http.Request) {
	category, err := models.ParseAccountCategory(r.URL.Query().Get("category"))
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	month := r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}

	variance, err := rs.BudgetVariance(r.Context(), category, month)
	if err != nil {
		rs.sendReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, variance)
}

type budgetRequest struct {
	Category string `json:"category" validate:"required"`
	Month    string `json:"month" validate:"required,len=7"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
}

// SetBudget creates or replaces a monthly budget for a category
// @Summary Set monthly budget
// @Tags reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body budgetRequest true "Budget details"
// @Success 200 {object} models.Budget
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /budgets [post]
func (rs *ReportService) SetBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if !actor.canPost() {
		SendErrorResponse(w, ErrForbidden.Error(), http.StatusForbidden, nil)
		return
	}

	var req budgetRequest
	if !decodeJSON(w, r, &req, rs.validator) {
		return
	}

	category, err := models.ParseAccountCategory(req.Category)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	start, _, err := monthRange(req.Month)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	budget := models.Budget{
		Category:  category,
		Month:     start,
		Amount:    req.Amount,
		CreatedBy: actor.ID,
	}
	err = rs.db.QueryRowContext(r.Context(), `
		INSERT INTO budgets (category, month, amount, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (category, month) DO UPDATE SET amount = EXCLUDED.amount
		RETURNING id, created_at`,
		string(category), start, req.Amount, actor.ID,
	).Scan(&budget.ID, &budget.CreatedAt)
	if err != nil {
		log.Printf("[REPORTS] Budget upsert failed: %v", err)
		SendErrorResponse(w, "Failed to save budget", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, budget)
}

func (rs *ReportService) sendReportError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	default:
		log.Printf("[REPORTS] Query failed: %v", err)
		SendErrorResponse(w, "Report query failed", http.StatusInternalServerError, nil)
	}
}
