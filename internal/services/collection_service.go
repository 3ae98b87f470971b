package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/png"
	"log"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/microvest/backoffice/internal/config"
)

// CollectionCode is a short-lived, single-use code a loan officer issues so a
// field agent or teller can collect a repayment without ledger access. Only
// the hash is stored; the plain code lives on the printed slip or QR image.
type CollectionCode struct {
	Reference string    `json:"reference"`
	Code      string    `json:"code,omitempty"`
	LoanID    int       `json:"loanId"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Expired   bool      `json:"expired"`
	Used      bool      `json:"used"`
}

type CollectionService struct {
	db     *sql.DB
	redis  *redis.Client
	loans  *LoanService
	config *config.CollectionConfig
}

func NewCollectionService(db *sql.DB, redis *redis.Client, loans *LoanService) *CollectionService {
	return &CollectionService{
		db:     db,
		redis:  redis,
		loans:  loans,
		config: config.LoadCollectionConfig(),
	}
}

// GenerateCode issues a collection code for an expected repayment on a loan.
func (s *CollectionService) GenerateCode(ctx context.Context, actor Actor, loanID int, amount int64, method string) (*CollectionCode, error) {
	if amount <= 0 {
		return nil, validationErrorf("collection amount must be positive")
	}
	if method != "CASH" && method != "BANK" {
		return nil, validationErrorf("collection method must be CASH or BANK")
	}

	loan, err := s.loans.loanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, loanID); err != nil {
		log.Printf("[COLLECT] Rate limit hit for loan %d: %v", loanID, err)
		return nil, err
	}

	code := s.generateSecureCode()
	hashedCode := s.hashCode(code)
	reference := s.generateReference()
	expiresAt := time.Now().Add(s.config.CodeTimeout)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collection_codes (reference, code_hash, loan_id, amount, method, issued_by, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)`,
		reference, hashedCode, loan.ID, amount, method, actor.ID, expiresAt)
	if err != nil {
		log.Printf("[COLLECT] Code insert failed for loan %d: %v", loanID, err)
		return nil, &TransientStoreError{Op: "generateCollectionCode", Err: err}
	}

	s.incrementRateLimit(ctx, loanID)

	log.Printf("[COLLECT] Code %s issued for loan %d by user %d, expires %v", reference, loan.ID, actor.ID, expiresAt)
	return &CollectionCode{
		Reference: reference,
		Code:      code,
		LoanID:    loan.ID,
		Amount:    amount,
		Method:    method,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}, nil
}

// GenerateQRImage renders the code as a base64 PNG for printed slips and
// agent phones.
func (s *CollectionService) GenerateQRImage(code string) (string, error) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to build QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.config.QRImageSizePixels)); err != nil {
		return "", fmt.Errorf("failed to encode QR image: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Redeem consumes a code and posts the repayment it stands for. The code row
// is locked and flipped to used in its own transaction before the ledger
// posting; a crash in between leaves a burned code but no double collection.
func (s *CollectionService) Redeem(ctx context.Context, actor Actor, code string) (*CollectionCode, error) {
	hashedCode := s.hashCode(code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &TransientStoreError{Op: "redeemCollectionCode", Err: err}
	}
	defer tx.Rollback()

	var cc CollectionCode
	var used bool
	err = tx.QueryRowContext(ctx, `
		SELECT reference, loan_id, amount, method, expires_at, used
		FROM collection_codes
		WHERE code_hash = $1
		FOR UPDATE`, hashedCode,
	).Scan(&cc.Reference, &cc.LoanID, &cc.Amount, &cc.Method, &cc.ExpiresAt, &used)
	if err == sql.ErrNoRows {
		return nil, validationErrorf("invalid collection code")
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "redeemCollectionCode", Err: err}
	}

	if used {
		return nil, validationErrorf("collection code already used")
	}
	if time.Now().After(cc.ExpiresAt) {
		return nil, validationErrorf("collection code expired")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE collection_codes SET used = true, used_at = $1, redeemed_by = $2
		WHERE code_hash = $3`, time.Now(), actor.ID, hashedCode)
	if err != nil {
		return nil, &TransientStoreError{Op: "redeemCollectionCode", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &TransientStoreError{Op: "redeemCollectionCode", Err: err}
	}

	if _, err := s.loans.CollectRepayment(ctx, actor, cc.LoanID, cc.Amount, cc.Method); err != nil {
		log.Printf("[COLLECT] Code %s consumed but repayment failed: %v", cc.Reference, err)
		return nil, err
	}

	cc.Used = true
	return &cc, nil
}

// LoanCodes lists a loan's codes with the plain code masked.
func (s *CollectionService) LoanCodes(ctx context.Context, loanID int) ([]CollectionCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reference, loan_id, amount, method, created_at, expires_at, used
		FROM collection_codes
		WHERE loan_id = $1
		ORDER BY expires_at DESC`, loanID)
	if err != nil {
		return nil, &TransientStoreError{Op: "loanCollectionCodes", Err: err}
	}
	defer rows.Close()

	var codes []CollectionCode
	for rows.Next() {
		var cc CollectionCode
		var used bool
		if err := rows.Scan(&cc.Reference, &cc.LoanID, &cc.Amount, &cc.Method, &cc.CreatedAt, &cc.ExpiresAt, &used); err != nil {
			return nil, &TransientStoreError{Op: "loanCollectionCodes", Err: err}
		}
		cc.Expired = time.Now().After(cc.ExpiresAt) || used
		cc.Used = used
		cc.Code = "***"
		codes = append(codes, cc)
	}

	return codes, rows.Err()
}

// CleanupExpiredCodes removes expired and long-spent codes. Run daily.
func (s *CollectionService) CleanupExpiredCodes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM collection_codes
		WHERE expires_at < $1 OR (used = true AND used_at < $2)`,
		time.Now(), time.Now().Add(-30*24*time.Hour))
	return err
}

func (s *CollectionService) generateSecureCode() string {
	const charset = "0123456789"
	code := make([]byte, s.config.CodeLength)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, _ := rand.Int(rand.Reader, charsetLen)
		code[i] = charset[n.Int64()]
	}

	return string(code)
}

func (s *CollectionService) generateReference() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%s-%X-%d", s.config.ReferencePrefix, b, time.Now().Unix())
}

func (s *CollectionService) hashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	for i := 1; i < s.config.HashIterations; i++ {
		hash = sha256.Sum256(hash[:])
	}
	return hex.EncodeToString(hash[:])
}

func (s *CollectionService) checkRateLimit(ctx context.Context, loanID int) error {
	key := fmt.Sprintf("collect:ratelimit:%d", loanID)
	count, err := s.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return &TransientStoreError{Op: "collectionRateLimit", Err: err}
	}

	if count >= s.config.MaxCodesPerLoan {
		return validationErrorf("too many open collection codes for this loan, try later")
	}

	return nil
}

func (s *CollectionService) incrementRateLimit(ctx context.Context, loanID int) {
	key := fmt.Sprintf("collect:ratelimit:%d", loanID)
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.RateLimitWindow)
	pipe.Exec(ctx)
}
