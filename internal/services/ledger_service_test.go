package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/microvest/backoffice/internal/models"
)

func asAccountant(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), "userID", 7)
	ctx = context.WithValue(ctx, "userRole", models.RoleAccountant)
	return r.WithContext(ctx)
}

func asLoanOfficer(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), "userID", 9)
	ctx = context.WithValue(ctx, "userRole", models.RoleLoanOfficer)
	return r.WithContext(ctx)
}

func systemAccountRow(id int, name, category, code string, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "category", "code", "bank_name", "account_number", "balance", "is_system_account", "version",
	}).AddRow(id, name, category, code, nil, nil, balance, true, version)
}

func TestLedgerService_CreateAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, nil)

	t.Run("successful creation", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs("Mobile Money Float", "asset", "MOBILE", "", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(8, time.Now(), time.Now()))

		body := []byte(`{"name":"Mobile Money Float","category":"asset","code":"MOBILE"}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/accounts", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.CreateAccount(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var acct models.Account
		json.Unmarshal(w.Body.Bytes(), &acct)
		assert.Equal(t, 8, acct.ID)
		assert.Equal(t, models.CategoryAsset, acct.Category)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loan officer rejected", func(t *testing.T) {
		body := []byte(`{"name":"Slush Fund","category":"asset","code":"SLUSH"}`)
		r := asLoanOfficer(httptest.NewRequest("POST", "/ledger/accounts", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.CreateAccount(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown category rejected", func(t *testing.T) {
		body := []byte(`{"name":"Weird","category":"contra","code":"WEIRD"}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/accounts", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.CreateAccount(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown json field rejected", func(t *testing.T) {
		body := []byte(`{"name":"Petty Cash 2","category":"asset","code":"CASH2","balance":999}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/accounts", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.CreateAccount(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLedgerService_ListAccounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, nil)

	t.Run("filtered by category", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "name", "category", "code", "bank_name", "account_number",
			"balance", "is_system_account", "version", "created_at", "updated_at",
		}).
			AddRow(2, "Main Bank", "asset", "BANK", "", "", int64(500000), true, 3, time.Now(), time.Now()).
			AddRow(3, "Petty Cash", "asset", "CASH", "", "", int64(20000), true, 2, time.Now(), time.Now())

		mock.ExpectQuery("SELECT id, name, category, code").
			WithArgs("asset").
			WillReturnRows(rows)

		r := asAccountant(httptest.NewRequest("GET", "/ledger/accounts?category=asset", nil))
		w := httptest.NewRecorder()

		service.ListAccounts(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var accounts []models.Account
		json.Unmarshal(w.Body.Bytes(), &accounts)
		assert.Len(t, accounts, 2)
		assert.Equal(t, "BANK", accounts[0].Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid category", func(t *testing.T) {
		r := asAccountant(httptest.NewRequest("GET", "/ledger/accounts?category=misc", nil))
		w := httptest.NewRecorder()

		service.ListAccounts(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLedgerService_PostCapitalInjection(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewLedgerService(db, redisClient)

	t.Run("injection posts and publishes", func(t *testing.T) {
		// Resolve the two system accounts by code.
		mock.ExpectQuery("SELECT id, name, category, code, bank_name").
			WithArgs(models.CodeBank).
			WillReturnRows(systemAccountRow(2, "Main Bank", "asset", "BANK", 0, 1))
		mock.ExpectQuery("SELECT id, name, category, code, bank_name").
			WithArgs(models.CodeCapital).
			WillReturnRows(systemAccountRow(1, "Share Capital", "equity", "CAPITAL", 0, 1))

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, name, category, code, balance, version").
			WithArgs(1).
			WillReturnRows(accountRows(t).AddRow(1, "Share Capital", "equity", "CAPITAL", int64(0), 1))
		mock.ExpectQuery("SELECT id, name, category, code, balance, version").
			WithArgs(2).
			WillReturnRows(accountRows(t).AddRow(2, "Main Bank", "asset", "BANK", int64(0), 1))

		mock.ExpectQuery("INSERT INTO journal_entries").
			WithArgs("injection", nil, "Seed capital", 7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(21, time.Now()))
		mock.ExpectQuery("INSERT INTO journal_lines").
			WithArgs(21, 2, int64(100000), int64(0)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(41, time.Now()))
		mock.ExpectQuery("INSERT INTO journal_lines").
			WithArgs(21, 1, int64(0), int64(100000)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, time.Now()))

		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(100000), 1, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(100000), 2, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		redisMock.Regexp().ExpectPublish(changeFeedChannel, `.*"kind":"injection".*`).SetVal(1)

		body := []byte(`{"amount":100000,"description":"Seed capital"}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/capital-injections", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.PostCapitalInjection(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var entry models.JournalEntry
		json.Unmarshal(w.Body.Bytes(), &entry)
		assert.Equal(t, 21, entry.ID)
		assert.Len(t, entry.Lines, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("missing capital account surfaces bootstrap hint", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, category, code, bank_name").
			WithArgs(models.CodeBank).
			WillReturnRows(systemAccountRow(2, "Main Bank", "asset", "BANK", 0, 1))
		mock.ExpectQuery("SELECT id, name, category, code, bank_name").
			WithArgs(models.CodeCapital).
			WillReturnError(sql.ErrNoRows)

		body := []byte(`{"amount":100000}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/capital-injections", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.PostCapitalInjection(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Share Capital")
	})
}

func TestLedgerService_PostTransfer(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, nil)

	t.Run("same account rejected", func(t *testing.T) {
		body := []byte(`{"fromAccountId":2,"toAccountId":2,"amount":5000}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/transfers", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.PostTransfer(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "distinct accounts")
	})

	t.Run("missing actor unauthorized", func(t *testing.T) {
		body := []byte(`{"fromAccountId":2,"toAccountId":3,"amount":5000}`)
		r := httptest.NewRequest("POST", "/ledger/transfers", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.PostTransfer(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLedgerService_PostJournalEntry(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, nil)

	t.Run("unknown reference type rejected", func(t *testing.T) {
		body := []byte(`{"referenceType":"adjustment","description":"x","lines":[{"accountId":1,"debit":10,"credit":0},{"accountId":2,"debit":0,"credit":10}]}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/entries", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.PostJournalEntry(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("single line rejected by validation tag", func(t *testing.T) {
		body := []byte(`{"referenceType":"transfer","description":"x","lines":[{"accountId":1,"debit":10,"credit":0}]}`)
		r := asAccountant(httptest.NewRequest("POST", "/ledger/entries", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.PostJournalEntry(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
