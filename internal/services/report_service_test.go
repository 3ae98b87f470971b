package services

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/microvest/backoffice/internal/models"
)

func newReportService(t *testing.T) (*ReportService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReportService(db), mock
}

func TestMonthRange(t *testing.T) {
	start, end, err := monthRange("2026-02")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), end)

	// December rolls into the next year.
	start, end, err = monthRange("2025-12")
	assert.NoError(t, err)
	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = monthRange("Feb 2026")
	assert.True(t, IsValidation(err))
}

func TestReportService_MonthlyIncomeStatement(t *testing.T) {
	service, mock := newReportService(t)

	mock.ExpectQuery("SELECT a.category").
		WillReturnRows(sqlmock.NewRows([]string{"category", "debits", "credits"}).
			AddRow("income", int64(500), int64(80500)).
			AddRow("expense", int64(30000), int64(0)))

	stmt, err := service.MonthlyIncomeStatement(context.Background(), "2026-07")
	assert.NoError(t, err)
	assert.Equal(t, int64(80000), stmt.Revenue)
	assert.Equal(t, int64(30000), stmt.Expenses)
	assert.Equal(t, int64(50000), stmt.NetProfit)
	assert.Equal(t, "2026-07", stmt.Period)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_MonthlyIncomeStatement_EmptyMonth(t *testing.T) {
	service, mock := newReportService(t)

	mock.ExpectQuery("SELECT a.category").
		WillReturnRows(sqlmock.NewRows([]string{"category", "debits", "credits"}))

	stmt, err := service.MonthlyIncomeStatement(context.Background(), "2020-01")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), stmt.Revenue)
	assert.Equal(t, int64(0), stmt.Expenses)
	assert.Equal(t, int64(0), stmt.NetProfit)
}

func TestReportService_BalanceSheet(t *testing.T) {
	service, mock := newReportService(t)

	mock.ExpectQuery("SELECT a.category, a.code").
		WillReturnRows(sqlmock.NewRows([]string{"category", "code", "debits", "credits"}).
			AddRow("asset", "BANK", int64(500000), int64(150000)).
			AddRow("asset", "CASH", int64(20000), int64(5000)).
			AddRow("asset", "PORTFOLIO", int64(150000), int64(40000)).
			AddRow("equity", "CAPITAL", int64(0), int64(444000)).
			AddRow("liability", "PAYABLE", int64(0), int64(25000)).
			AddRow("income", "INTEREST", int64(0), int64(12000)).
			AddRow("expense", "OPEX", int64(6000), int64(0)))

	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	report, err := service.BalanceSheet(context.Background(), asOf, 110000)
	assert.NoError(t, err)

	// The ledger's own portfolio account is skipped; the loan subsystem
	// figure stands in for it.
	assert.Equal(t, int64(365000), report.LiquidAssets)
	assert.Equal(t, int64(110000), report.LoanPortfolio)
	assert.Equal(t, int64(475000), report.TotalAssets)
	assert.Equal(t, int64(25000), report.Liabilities)
	assert.Equal(t, int64(444000), report.Equity)
	assert.Equal(t, int64(6000), report.RetainedEarnings)
	assert.Equal(t, "2026-08-31", report.AsOf)
	assert.Equal(t, report.TotalAssets, report.TotalLiabEquity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_BudgetVariance(t *testing.T) {
	service, mock := newReportService(t)

	mock.ExpectQuery("SELECT COALESCE\\(amount, 0\\) FROM budgets").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(40000)))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(l.debit\\), 0\\)").
		WillReturnRows(sqlmock.NewRows([]string{"debits", "credits"}).AddRow(int64(30000), int64(0)))

	variance, err := service.BudgetVariance(context.Background(), models.CategoryExpense, "2026-07")
	assert.NoError(t, err)
	assert.Equal(t, int64(40000), variance.Budgeted)
	assert.Equal(t, int64(30000), variance.Actual)
	assert.Equal(t, int64(-10000), variance.Variance)
	assert.NotNil(t, variance.Percentage)
	assert.Equal(t, "75.0", *variance.Percentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_BudgetVariance_NoBudget(t *testing.T) {
	service, mock := newReportService(t)

	mock.ExpectQuery("SELECT COALESCE\\(amount, 0\\) FROM budgets").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(l.debit\\), 0\\)").
		WillReturnRows(sqlmock.NewRows([]string{"debits", "credits"}).AddRow(int64(0), int64(9000)))

	variance, err := service.BudgetVariance(context.Background(), models.CategoryIncome, "2026-07")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), variance.Budgeted)
	assert.Equal(t, int64(9000), variance.Actual)
	assert.Nil(t, variance.Percentage)
}

func TestReportService_BudgetVariance_BadMonth(t *testing.T) {
	service, _ := newReportService(t)

	_, err := service.BudgetVariance(context.Background(), models.CategoryExpense, "July")
	assert.True(t, IsValidation(err))
}

func TestReportService_GetIncomeStatement_BadPeriod(t *testing.T) {
	service, _ := newReportService(t)

	r := asAccountant(httptest.NewRequest("GET", "/reports/income-statement?period=2026-13", nil))
	w := httptest.NewRecorder()

	service.GetIncomeStatement(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "expected YYYY-MM")
}

func TestReportService_GetBalanceSheet_BadDate(t *testing.T) {
	service, _ := newReportService(t)

	r := asAccountant(httptest.NewRequest("GET", "/reports/balance-sheet?asOf=tomorrow", nil))
	w := httptest.NewRecorder()

	service.GetBalanceSheet(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportService_GetBudgetVariance_BadCategory(t *testing.T) {
	service, _ := newReportService(t)

	r := asAccountant(httptest.NewRequest("GET", "/reports/budget-variance?category=misc&month=2026-07", nil))
	w := httptest.NewRecorder()

	service.GetBudgetVariance(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportService_SetBudget(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, mock := newReportService(t)

		mock.ExpectQuery("INSERT INTO budgets").
			WithArgs("expense", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), int64(40000), 7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, time.Now()))

		body := []byte(`{"category":"expense","month":"2026-09","amount":40000}`)
		r := asAccountant(httptest.NewRequest("POST", "/budgets", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.SetBudget(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loan officer forbidden", func(t *testing.T) {
		service, _ := newReportService(t)

		body := []byte(`{"category":"expense","month":"2026-09","amount":40000}`)
		r := asLoanOfficer(httptest.NewRequest("POST", "/budgets", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.SetBudget(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad category", func(t *testing.T) {
		service, _ := newReportService(t)

		body := []byte(`{"category":"contra","month":"2026-09","amount":40000}`)
		r := asAccountant(httptest.NewRequest("POST", "/budgets", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.SetBudget(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
