package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/microvest/backoffice/internal/models"
)

func newCollectionService(t *testing.T) (*CollectionService, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	redisClient, redisMock := redismock.NewClientMock()
	loans := NewLoanService(db, NewPostingService(db), nil, NewBankService())
	return NewCollectionService(db, redisClient, loans), mock, redisMock
}

func TestCollectionService_GenerateCode(t *testing.T) {
	service, mock, redisMock := newCollectionService(t)

	mock.ExpectQuery("SELECT id, client_id, principal, interest_rate").
		WithArgs(12).
		WillReturnRows(loanRow(12, 50000, "10", models.LoanActive, 50000))

	redisMock.ExpectGet("collect:ratelimit:12").RedisNil()
	mock.ExpectExec("INSERT INTO collection_codes").
		WillReturnResult(sqlmock.NewResult(1, 1))
	redisMock.ExpectIncr("collect:ratelimit:12").SetVal(1)
	redisMock.ExpectExpire("collect:ratelimit:12", time.Hour).SetVal(true)

	cc, err := service.GenerateCode(context.Background(), accountant, 12, 11000, "CASH")
	assert.NoError(t, err)
	assert.Len(t, cc.Code, service.config.CodeLength)
	assert.NotEmpty(t, cc.Reference)
	assert.Equal(t, 12, cc.LoanID)
	assert.True(t, cc.ExpiresAt.After(time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCollectionService_GenerateCode_Rejections(t *testing.T) {
	t.Run("non-positive amount", func(t *testing.T) {
		service, _, _ := newCollectionService(t)
		_, err := service.GenerateCode(context.Background(), accountant, 12, 0, "CASH")
		assert.True(t, IsValidation(err))
	})

	t.Run("bad method", func(t *testing.T) {
		service, _, _ := newCollectionService(t)
		_, err := service.GenerateCode(context.Background(), accountant, 12, 1000, "CHEQUE")
		assert.True(t, IsValidation(err))
	})

	t.Run("rate limited", func(t *testing.T) {
		service, mock, redisMock := newCollectionService(t)
		mock.ExpectQuery("SELECT id, client_id, principal, interest_rate").
			WithArgs(12).
			WillReturnRows(loanRow(12, 50000, "10", models.LoanActive, 50000))
		redisMock.ExpectGet("collect:ratelimit:12").
			SetVal(fmt.Sprint(service.config.MaxCodesPerLoan))

		_, err := service.GenerateCode(context.Background(), accountant, 12, 1000, "CASH")
		assert.True(t, IsValidation(err))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestCollectionService_GenerateQRImage(t *testing.T) {
	service, _, _ := newCollectionService(t)

	encoded, err := service.GenerateQRImage("12345678")
	assert.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	assert.NoError(t, err)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
}

func TestCollectionService_Redeem_InvalidCode(t *testing.T) {
	service, mock, _ := newCollectionService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT reference, loan_id, amount, method, expires_at, used").
		WithArgs(service.hashCode("00000000")).
		WillReturnRows(sqlmock.NewRows([]string{"reference", "loan_id", "amount", "method", "expires_at", "used"}))
	mock.ExpectRollback()

	_, err := service.Redeem(context.Background(), accountant, "00000000")
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "invalid collection code")
}

func TestCollectionService_Redeem_UsedCode(t *testing.T) {
	service, mock, _ := newCollectionService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT reference, loan_id, amount, method, expires_at, used").
		WithArgs(service.hashCode("11112222")).
		WillReturnRows(sqlmock.NewRows([]string{"reference", "loan_id", "amount", "method", "expires_at", "used"}).
			AddRow("COL-AA-1", 12, int64(11000), "CASH", time.Now().Add(time.Hour), true))
	mock.ExpectRollback()

	_, err := service.Redeem(context.Background(), accountant, "11112222")
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "already used")
}

func TestCollectionService_Redeem_ExpiredCode(t *testing.T) {
	service, mock, _ := newCollectionService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT reference, loan_id, amount, method, expires_at, used").
		WithArgs(service.hashCode("33334444")).
		WillReturnRows(sqlmock.NewRows([]string{"reference", "loan_id", "amount", "method", "expires_at", "used"}).
			AddRow("COL-BB-2", 12, int64(11000), "CASH", time.Now().Add(-time.Minute), false))
	mock.ExpectRollback()

	_, err := service.Redeem(context.Background(), accountant, "33334444")
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestCollectionService_HashCode(t *testing.T) {
	service, _, _ := newCollectionService(t)

	first := service.hashCode("12345678")
	assert.Equal(t, first, service.hashCode("12345678"))
	assert.NotEqual(t, first, service.hashCode("12345679"))
	assert.Len(t, first, 64)
	assert.NotContains(t, first, "12345678")
}

func TestCollectionService_LoanCodes_Masked(t *testing.T) {
	service, mock, _ := newCollectionService(t)

	mock.ExpectQuery("SELECT reference, loan_id, amount, method, created_at, expires_at, used").
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"reference", "loan_id", "amount", "method", "created_at", "expires_at", "used"}).
			AddRow("COL-CC-3", 12, int64(11000), "CASH", time.Now(), time.Now().Add(time.Hour), false).
			AddRow("COL-DD-4", 12, int64(5000), "BANK", time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour), true))

	codes, err := service.LoanCodes(context.Background(), 12)
	assert.NoError(t, err)
	assert.Len(t, codes, 2)
	assert.Equal(t, "***", codes[0].Code)
	assert.False(t, codes[0].Expired)
	assert.True(t, codes[1].Expired)
	assert.True(t, codes[1].Used)
}
