package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"

	"github.com/microvest/backoffice/internal/models"
)

// changeFeedChannel carries notify-and-pull refresh hints to open UI
// sessions. Consumers re-fetch on receipt; correctness never depends on it.
const changeFeedChannel = "ledger:events"

// LedgerService exposes the chart of accounts and the posting engine over
// HTTP. All balance mutation goes through the embedded PostingService.
type LedgerService struct {
	db        *sql.DB
	redis     *redis.Client
	posting   *PostingService
	validator *ValidationHelper
}

func NewLedgerService(db *sql.DB, redisClient *redis.Client) *LedgerService {
	return &LedgerService{
		db:        db,
		redis:     redisClient,
		posting:   NewPostingService(db),
		validator: NewValidationHelper(),
	}
}

// Posting exposes the underlying engine to sibling services (loans).
func (ls *LedgerService) Posting() *PostingService {
	return ls.posting
}

type createAccountRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=100"`
	Category      string `json:"category" validate:"required"`
	Code          string `json:"code" validate:"required,min=2,max=20,uppercase"`
	BankName      string `json:"bankName" validate:"max=100"`
	AccountNumber string `json:"accountNumber" validate:"max=20"`
}

// CreateAccount adds an account to the chart of accounts
// @Summary Create ledger account
// @Description Add a new account to the chart of accounts
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createAccountRequest true "Account details"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /accounts [post]
func (ls *LedgerService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if !actor.canPost() {
		SendErrorResponse(w, ErrForbidden.Error(), http.StatusForbidden, nil)
		return
	}

	var req createAccountRequest
	if !decodeJSON(w, r, &req, ls.validator) {
		return
	}

	category, err := models.ParseAccountCategory(req.Category)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	acct := models.Account{
		Name:          req.Name,
		Category:      category,
		Code:          req.Code,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		Version:       1,
	}
	err = ls.db.QueryRowContext(r.Context(), `
		INSERT INTO accounts (name, category, code, bank_name, account_number, balance, is_system_account, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, false, 1, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		req.Name, string(category), req.Code, req.BankName, req.AccountNumber,
	).Scan(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		log.Printf("[LEDGER] Account creation failed: %v", err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LEDGER] Account %d (%s/%s) created by user %d", acct.ID, acct.Code, acct.Category, actor.ID)
	writeJSON(w, http.StatusCreated, acct)
}

// ListAccounts returns the chart of accounts
// @Summary List ledger accounts
// @Description List all accounts, optionally filtered by category
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param category query string false "Filter by category"
// @Success 200 {array} models.Account
// @Router /accounts [get]
func (ls *LedgerService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, name, category, code, COALESCE(bank_name, ''), COALESCE(account_number, ''),
		       balance, is_system_account, version, created_at, updated_at
		FROM accounts`
	args := []any{}

	if category := r.URL.Query().Get("category"); category != "" {
		parsed, err := models.ParseAccountCategory(category)
		if err != nil {
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
		query += ` WHERE category = $1`
		args = append(args, string(parsed))
	}
	query += ` ORDER BY category, code, id`

	rows, err := ls.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[LEDGER] Account listing failed: %v", err)
		SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.Code, &a.BankName, &a.AccountNumber,
			&a.Balance, &a.IsSystemAccount, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, a)
	}

	writeJSON(w, http.StatusOK, accounts)
}

// AccountBalanceEnquiry returns the cached balance for one account
// @Summary Account balance enquiry
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param accountId path int true "Account ID"
// @Success 200 {object} object{accountId=int,balance=int64}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId}/balance [get]
func (ls *LedgerService) AccountBalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.Atoi(chi.URLParam(r, "accountId"))
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	balance, err := ls.posting.AccountBalance(r.Context(), accountID)
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   balance,
	})
}

// ReconcileAccount recomputes one account's balance from line history
// @Summary Reconcile account balance
// @Description Recompute the cached balance from the full journal line history and repair drift
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param accountId path int true "Account ID"
// @Success 200 {object} object{accountId=int,balance=int64,drift=int64}
// @Router /accounts/{accountId}/reconcile [post]
func (ls *LedgerService) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok || !actor.canPost() {
		SendErrorResponse(w, ErrForbidden.Error(), http.StatusForbidden, nil)
		return
	}

	accountID, err := strconv.Atoi(chi.URLParam(r, "accountId"))
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	balance, drift, err := ls.posting.ReconcileAccountBalance(r.Context(), accountID)
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   balance,
		"drift":     drift,
	})
}

// BootstrapChart idempotently creates the system accounts
// @Summary Initialize chart of accounts
// @Description Create the five system accounts if missing; safe to call repeatedly
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{created=[]models.Account}
// @Failure 403 {object} ErrorResponse
// @Router /ledger/bootstrap [post]
func (ls *LedgerService) BootstrapChart(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	created, err := ls.posting.InitializeChartOfAccounts(r.Context(), actor)
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}

	if created == nil {
		created = []models.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

type injectionRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=200"`
}

// PostCapitalInjection records owner-contributed funds
// @Summary Post capital injection
// @Description Debit the main bank account and credit share capital
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body injectionRequest true "Injection details"
// @Success 201 {object} models.JournalEntry
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /ledger/injections [post]
func (ls *LedgerService) PostCapitalInjection(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req injectionRequest
	if !decodeJSON(w, r, &req, ls.validator) {
		return
	}

	bank, err := ls.posting.AccountByCode(r.Context(), models.CodeBank)
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}
	capital, err := ls.posting.AccountByCode(r.Context(), models.CodeCapital)
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}

	description := req.Description
	if description == "" {
		description = "Capital injection"
	}

	entry, err := ls.posting.PostEntry(r.Context(), actor, PostEntryInput{
		ReferenceType: models.RefInjection,
		Description:   description,
		Lines: []models.ProposedLine{
			{AccountID: bank.ID, Debit: req.Amount},
			{AccountID: capital.ID, Credit: req.Amount},
		},
	})
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}

	ls.publishChange(r.Context(), "injection", entry)
	writeJSON(w, http.StatusCreated, entry)
}

type transferRequest struct {
	FromAccountID int    `json:"fromAccountId" validate:"required,gt=0"`
	ToAccountID   int    `json:"toAccountId" validate:"required,gt=0"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Description   string `json:"description" validate:"max=200"`
}

// PostTransfer moves money between two accounts
// @Summary Post transfer between accounts
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body transferRequest true "Transfer details"
// @Success 201 {object} models.JournalEntry
// @Failure 400 {object} ErrorResponse
// @Router /ledger/transfers [post]
func (ls *LedgerService) PostTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req transferRequest
	if !decodeJSON(w, r, &req, ls.validator) {
		return
	}

	if req.FromAccountID == req.ToAccountID {
		SendErrorResponse(w, "Transfer requires two distinct accounts", http.StatusBadRequest, nil)
		return
	}

	description := req.Description
	if description == "" {
		description = "Transfer between accounts"
	}

	entry, err := ls.posting.PostEntry(r.Context(), actor, PostEntryInput{
		ReferenceType: models.RefTransfer,
		Description:   description,
		Lines: []models.ProposedLine{
			{AccountID: req.ToAccountID, Debit: req.Amount},
			{AccountID: req.FromAccountID, Credit: req.Amount},
		},
	})
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}

	ls.publishChange(r.Context(), "transfer", entry)
	writeJSON(w, http.StatusCreated, entry)
}

type postEntryRequest struct {
	ReferenceType   string                `json:"referenceType" validate:"required"`
	RelatedEntityID *int                  `json:"relatedEntityId"`
	Description     string                `json:"description" validate:"required,max=200"`
	Lines           []models.ProposedLine `json:"lines" validate:"required,min=2,dive"`
}

// PostJournalEntry records an arbitrary balanced entry
// @Summary Post journal entry
// @Description Record a balanced double-entry event against the chart of accounts
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body postEntryRequest true "Entry details"
// @Success 201 {object} models.JournalEntry
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /ledger/entries [post]
func (ls *LedgerService) PostJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req postEntryRequest
	if !decodeJSON(w, r, &req, ls.validator) {
		return
	}

	refType, err := models.ParseReferenceType(req.ReferenceType)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	entry, err := ls.posting.PostEntry(r.Context(), actor, PostEntryInput{
		ReferenceType:   refType,
		RelatedEntityID: req.RelatedEntityID,
		Description:     req.Description,
		Lines:           req.Lines,
	})
	if err != nil {
		ls.sendLedgerError(w, err)
		return
	}

	ls.publishChange(r.Context(), string(refType), entry)
	writeJSON(w, http.StatusCreated, entry)
}

// ListJournalEntries returns recent entries
// @Summary List journal entries
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param type query string false "Filter by reference type"
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {array} models.JournalEntry
// @Router /ledger/entries [get]
func (ls *LedgerService) ListJournalEntries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	query := `
		SELECT id, reference_type, related_entity_id, description, created_by, created_at
		FROM journal_entries`
	args := []any{}

	if refType := r.URL.Query().Get("type"); refType != "" {
		parsed, err := models.ParseReferenceType(refType)
		if err != nil {
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
		query += ` WHERE reference_type = $1`
		args = append(args, string(parsed))
	}
	query += ` ORDER BY id DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := ls.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[LEDGER] Entry listing failed: %v", err)
		SendErrorResponse(w, "Failed to list entries", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.ReferenceType, &e.RelatedEntityID, &e.Description, &e.CreatedBy, &e.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to list entries", http.StatusInternalServerError, nil)
			return
		}
		entries = append(entries, e)
	}

	writeJSON(w, http.StatusOK, entries)
}

// sendLedgerError maps the engine's error taxonomy onto HTTP statuses. The
// validation and not-found messages are surfaced verbatim; store failures are
// kept generic because nothing partial was committed and a retry is safe.
func (ls *LedgerService) sendLedgerError(w http.ResponseWriter, err error) {
	switch {
	case err == ErrForbidden:
		SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
	case IsValidation(err):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case IsNotFound(err):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	default:
		log.Printf("[LEDGER] Store error: %v", err)
		SendErrorResponse(w, "Transaction failed, please retry", http.StatusServiceUnavailable, nil)
	}
}

func (ls *LedgerService) publishChange(ctx context.Context, kind string, entry *models.JournalEntry) {
	if ls.redis == nil {
		return
	}

	accounts := make([]int, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		accounts = append(accounts, line.AccountID)
	}
	payload, err := json.Marshal(models.ChangeEvent{
		Kind:      kind,
		EntryID:   entry.ID,
		Accounts:  accounts,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	if err := ls.redis.Publish(ctx, changeFeedChannel, string(payload)).Err(); err != nil {
		log.Printf("[LEDGER] Change feed publish failed: %v", err)
	}
}

// decodeJSON applies the shared body handling: size cap, unknown-field
// rejection, single-object check, struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, vh *ValidationHelper) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := vh.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
