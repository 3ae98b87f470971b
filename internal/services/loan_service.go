package services

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/microvest/backoffice/internal/audit"
	"github.com/microvest/backoffice/internal/models"
)

// LoanService covers the client CRM and the loan lifecycle. Disbursement and
// repayment post through the ledger engine; the loans table never carries
// money that the journal does not.
type LoanService struct {
	db            *sql.DB
	posting       *PostingService
	notifications *NotificationService
	banks         *BankService
	validator     *ValidationHelper
	audit         *audit.Logger
}

func NewLoanService(db *sql.DB, posting *PostingService, notifications *NotificationService, banks *BankService) *LoanService {
	return &LoanService{
		db:            db,
		posting:       posting,
		notifications: notifications,
		banks:         banks,
		validator:     NewValidationHelper(),
		audit:         audit.NewLogger(),
	}
}

type createClientRequest struct {
	FirstName   string `json:"firstName" validate:"required,min=2,max=50"`
	LastName    string `json:"lastName" validate:"required,min=2,max=50"`
	PhoneNumber string `json:"phoneNumber" validate:"required,min=7,max=20"`
	Email       string `json:"email" validate:"omitempty,email"`
	NationalID  string `json:"nationalId" validate:"required,min=5,max=30"`
	Address     string `json:"address" validate:"max=200"`
}

// CreateClient registers a borrower
// @Summary Register client
// @Tags clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createClientRequest true "Client details"
// @Success 201 {object} models.Client
// @Failure 400 {object} ErrorResponse
// @Router /clients [post]
func (s *LoanService) CreateClient(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createClientRequest
	if !decodeJSON(w, r, &req, s.validator) {
		return
	}

	client := models.Client{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		NationalID:  req.NationalID,
		Address:     req.Address,
		CreatedBy:   actor.ID,
	}
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO clients (first_name, last_name, phone_number, email, national_id, address, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at`,
		req.FirstName, req.LastName, req.PhoneNumber, req.Email, req.NationalID, req.Address, actor.ID,
	).Scan(&client.ID, &client.CreatedAt)
	if err != nil {
		log.Printf("[LOANS] Client creation failed: %v", err)
		SendErrorResponse(w, "National ID already registered", http.StatusConflict, nil)
		return
	}

	writeJSON(w, http.StatusCreated, client)
}

// ListClients lists registered borrowers
// @Summary List clients
// @Tags clients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Client
// @Router /clients [get]
func (s *LoanService) ListClients(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, first_name, last_name, phone_number, COALESCE(email, ''), national_id,
		       COALESCE(address, ''), COALESCE(photo_path, ''), created_by, created_at
		FROM clients ORDER BY id DESC`)
	if err != nil {
		log.Printf("[LOANS] Client listing failed: %v", err)
		SendErrorResponse(w, "Failed to list clients", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.PhoneNumber, &c.Email,
			&c.NationalID, &c.Address, &c.PhotoPath, &c.CreatedBy, &c.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to list clients", http.StatusInternalServerError, nil)
			return
		}
		clients = append(clients, c)
	}

	writeJSON(w, http.StatusOK, clients)
}

// GetClient fetches one borrower with their loans
// @Summary Get client
// @Tags clients
// @Produce json
// @Security BearerAuth
// @Param clientId path int true "Client ID"
// @Success 200 {object} object{client=models.Client,loans=[]models.Loan}
// @Failure 404 {object} ErrorResponse
// @Router /clients/{clientId} [get]
func (s *LoanService) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.Atoi(chi.URLParam(r, "clientId"))
	if err != nil {
		SendErrorResponse(w, "Invalid client id", http.StatusBadRequest, nil)
		return
	}

	var c models.Client
	err = s.db.QueryRowContext(r.Context(), `
		SELECT id, first_name, last_name, phone_number, COALESCE(email, ''), national_id,
		       COALESCE(address, ''), COALESCE(photo_path, ''), created_by, created_at
		FROM clients WHERE id = $1`, clientID,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.PhoneNumber, &c.Email,
		&c.NationalID, &c.Address, &c.PhotoPath, &c.CreatedBy, &c.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Client not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[LOANS] Client lookup failed: %v", err)
		SendErrorResponse(w, "Failed to fetch client", http.StatusInternalServerError, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, principal, interest_rate, term_months, status, outstanding_principal, created_at
		FROM loans WHERE client_id = $1 ORDER BY id DESC`, clientID)
	if err != nil {
		log.Printf("[LOANS] Client loan listing failed: %v", err)
		SendErrorResponse(w, "Failed to fetch client", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	loans := []models.Loan{}
	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(&l.ID, &l.Principal, &l.InterestRate, &l.TermMonths,
			&l.Status, &l.OutstandingPrincipal, &l.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch client", http.StatusInternalServerError, nil)
			return
		}
		l.ClientID = clientID
		loans = append(loans, l)
	}

	writeJSON(w, http.StatusOK, map[string]any{"client": c, "loans": loans})
}

type createLoanRequest struct {
	ClientID             int    `json:"clientId" validate:"required,gt=0"`
	Principal            int64  `json:"principal" validate:"required,gt=0"`
	InterestRate         string `json:"interestRate" validate:"required"`
	TermMonths           int    `json:"termMonths" validate:"required,gt=0,lte=60"`
	Purpose              string `json:"purpose" validate:"max=200"`
	DisbursementBankCode string `json:"disbursementBankCode" validate:"max=10"`
	DisbursementAccount  string `json:"disbursementAccount" validate:"max=20"`
}

// CreateLoan originates a pending loan application
// @Summary Originate loan
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createLoanRequest true "Loan application"
// @Success 201 {object} models.Loan
// @Failure 400 {object} ErrorResponse
// @Router /loans [post]
func (s *LoanService) CreateLoan(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createLoanRequest
	if !decodeJSON(w, r, &req, s.validator) {
		return
	}

	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		SendErrorResponse(w, "Interest rate must be a percentage between 0 and 100", http.StatusBadRequest, nil)
		return
	}

	if req.DisbursementBankCode != "" && !s.banks.KnownBankCode(req.DisbursementBankCode) {
		SendErrorResponse(w, "Unknown disbursement bank code", http.StatusBadRequest, nil)
		return
	}

	loan := models.Loan{
		ClientID:     req.ClientID,
		Principal:    req.Principal,
		InterestRate: rate.String(),
		TermMonths:   req.TermMonths,
		Status:       models.LoanPending,
		Purpose:      req.Purpose,

		DisbursementBankCode: req.DisbursementBankCode,
		DisbursementAccount:  req.DisbursementAccount,
		CreatedBy:            actor.ID,
	}
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO loans (client_id, principal, interest_rate, term_months, status, purpose,
		                   outstanding_principal, disbursement_bank_code, disbursement_account, created_by, created_at)
		VALUES ($1, $2, $3, $4, 'PENDING', $5, 0, $6, $7, $8, NOW())
		RETURNING id, created_at`,
		req.ClientID, req.Principal, rate.String(), req.TermMonths, req.Purpose,
		req.DisbursementBankCode, req.DisbursementAccount, actor.ID,
	).Scan(&loan.ID, &loan.CreatedAt)
	if err != nil {
		log.Printf("[LOANS] Loan creation failed: %v", err)
		SendErrorResponse(w, "Failed to create loan", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LOANS] Loan %d originated for client %d by user %d", loan.ID, req.ClientID, actor.ID)
	writeJSON(w, http.StatusCreated, loan)
}

// ListLoans lists loans, optionally by status
// @Summary List loans
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {array} models.Loan
// @Router /loans [get]
func (s *LoanService) ListLoans(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, client_id, principal, interest_rate, term_months, status, COALESCE(purpose, ''),
		       outstanding_principal, COALESCE(disbursement_bank_code, ''), COALESCE(disbursement_account, ''),
		       created_by, approved_by, created_at, approved_at, disbursed_at, due_date
		FROM loans`
	args := []any{}
	if status := r.URL.Query().Get("status"); status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[LOANS] Loan listing failed: %v", err)
		SendErrorResponse(w, "Failed to list loans", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	loans := []models.Loan{}
	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(&l.ID, &l.ClientID, &l.Principal, &l.InterestRate, &l.TermMonths, &l.Status,
			&l.Purpose, &l.OutstandingPrincipal, &l.DisbursementBankCode, &l.DisbursementAccount,
			&l.CreatedBy, &l.ApprovedBy, &l.CreatedAt, &l.ApprovedAt, &l.DisbursedAt, &l.DueDate); err != nil {
			SendErrorResponse(w, "Failed to list loans", http.StatusInternalServerError, nil)
			return
		}
		loans = append(loans, l)
	}

	writeJSON(w, http.StatusOK, loans)
}

type approveLoanRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason" validate:"max=200"`
}

// ApproveLoan approves or rejects a pending loan
// @Summary Approve or reject loan
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Param request body approveLoanRequest true "Decision"
// @Success 200 {object} object{loanId=int,status=string}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /loans/{loanId}/approve [put]
func (s *LoanService) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if !actor.canPost() {
		SendErrorResponse(w, "Loan approval requires accountant or admin role", http.StatusForbidden, nil)
		return
	}

	loanID, err := strconv.Atoi(chi.URLParam(r, "loanId"))
	if err != nil {
		SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	var req approveLoanRequest
	if !decodeJSON(w, r, &req, s.validator) {
		return
	}

	status := models.LoanApproved
	if !req.Approve {
		status = models.LoanRejected
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE loans SET status = $1, approved_by = $2, approved_at = NOW()
		WHERE id = $3 AND status = 'PENDING'`,
		string(status), actor.ID, loanID)
	if err != nil {
		log.Printf("[LOANS] Approval update failed for loan %d: %v", loanID, err)
		SendErrorResponse(w, "Failed to update loan", http.StatusInternalServerError, nil)
		return
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		SendErrorResponse(w, "Loan not found or not pending", http.StatusNotFound, nil)
		return
	}

	log.Printf("[LOANS] Loan %d %s by user %d", loanID, status, actor.ID)
	s.notifications.NotifyUser(r.Context(), actor.ID, "LOAN",
		"Loan decision recorded", "Loan "+strconv.Itoa(loanID)+" marked "+string(status))

	writeJSON(w, http.StatusOK, map[string]any{"loanId": loanID, "status": status})
}

// DisburseLoan pays out an approved loan
// @Summary Disburse loan
// @Description Post the disbursement entry (debit loan portfolio, credit main bank) and activate the loan
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {object} object{loanId=int,entryId=int,status=string}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /loans/{loanId}/disburse [post]
func (s *LoanService) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	loanID, err := strconv.Atoi(chi.URLParam(r, "loanId"))
	if err != nil {
		SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	loan, err := s.loanByID(r.Context(), loanID)
	if err != nil {
		s.sendLoanError(w, err)
		return
	}
	if loan.Status != models.LoanApproved {
		SendErrorResponse(w, "Loan must be approved before disbursement", http.StatusConflict, nil)
		return
	}

	portfolio, err := s.posting.AccountByCode(r.Context(), models.CodePortfolio)
	if err != nil {
		s.sendLoanError(w, err)
		return
	}
	bank, err := s.posting.AccountByCode(r.Context(), models.CodeBank)
	if err != nil {
		s.sendLoanError(w, err)
		return
	}

	entry, err := s.posting.PostEntry(r.Context(), actor, PostEntryInput{
		ReferenceType:   models.RefDisbursement,
		RelatedEntityID: &loan.ID,
		Description:     "Disbursement of loan " + strconv.Itoa(loan.ID),
		Lines: []models.ProposedLine{
			{AccountID: portfolio.ID, Debit: loan.Principal},
			{AccountID: bank.ID, Credit: loan.Principal},
		},
	})
	if err != nil {
		s.sendLoanError(w, err)
		return
	}

	dueDate := time.Now().AddDate(0, loan.TermMonths, 0)
	_, err = s.db.ExecContext(r.Context(), `
		UPDATE loans SET status = 'ACTIVE', outstanding_principal = principal,
		       disbursed_at = NOW(), due_date = $1
		WHERE id = $2`, dueDate, loan.ID)
	if err != nil {
		// The ledger entry is committed; the status row lagging behind is
		// repairable, losing the entry would not be.
		log.Printf("[LOANS] Loan %d disbursed (entry %d) but status update failed: %v", loan.ID, entry.ID, err)
		SendErrorResponse(w, "Disbursement posted but loan update failed", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogDisbursement(loan.ID, entry.ID, loan.Principal)
	s.notifications.NotifyUser(r.Context(), loan.CreatedBy, "LOAN",
		"Loan disbursed", "Loan "+strconv.Itoa(loan.ID)+" has been disbursed")

	writeJSON(w, http.StatusOK, map[string]any{
		"loanId":  loan.ID,
		"entryId": entry.ID,
		"status":  models.LoanActive,
	})
}

type repaymentRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Method string `json:"method" validate:"required,oneof=CASH BANK"`
}

// RecordRepayment collects an instalment against an active loan
// @Summary Record loan repayment
// @Description Split the amount into principal and interest, post the repayment entry and update the loan
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Param request body repaymentRequest true "Repayment details"
// @Success 201 {object} models.Repayment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /loans/{loanId}/repayments [post]
func (s *LoanService) RecordRepayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	loanID, err := strconv.Atoi(chi.URLParam(r, "loanId"))
	if err != nil {
		SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	var req repaymentRequest
	if !decodeJSON(w, r, &req, s.validator) {
		return
	}

	repayment, err := s.CollectRepayment(r.Context(), actor, loanID, req.Amount, req.Method)
	if err != nil {
		s.sendLoanError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, repayment)
}

// CollectRepayment posts the repayment entry and updates the loan. Shared
// between the HTTP handler and collection-code redemption.
func (s *LoanService) CollectRepayment(ctx context.Context, actor Actor, loanID int, amount int64, method string) (*models.Repayment, error) {
	loan, err := s.loanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanActive && loan.Status != models.LoanOverdue {
		return nil, validationErrorf("loan %d is %s, repayments require an active loan", loanID, loan.Status)
	}

	principalPart, interestPart, err := splitRepayment(amount, loan.OutstandingPrincipal, loan.InterestRate)
	if err != nil {
		return nil, err
	}

	moneyCode := models.CodeCash
	if method == "BANK" {
		moneyCode = models.CodeBank
	}
	money, err := s.posting.AccountByCode(ctx, moneyCode)
	if err != nil {
		return nil, err
	}
	portfolio, err := s.posting.AccountByCode(ctx, models.CodePortfolio)
	if err != nil {
		return nil, err
	}

	lines := []models.ProposedLine{
		{AccountID: money.ID, Debit: amount},
		{AccountID: portfolio.ID, Credit: principalPart},
	}
	if interestPart > 0 {
		interest, err := s.posting.AccountByCode(ctx, models.CodeInterest)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.ProposedLine{AccountID: interest.ID, Credit: interestPart})
	}

	entry, err := s.posting.PostEntry(ctx, actor, PostEntryInput{
		ReferenceType:   models.RefRepayment,
		RelatedEntityID: &loan.ID,
		Description:     "Repayment on loan " + strconv.Itoa(loan.ID),
		Lines:           lines,
	})
	if err != nil {
		return nil, err
	}

	repayment := &models.Repayment{
		LoanID:    loan.ID,
		Amount:    amount,
		Principal: principalPart,
		Interest:  interestPart,
		Method:    method,
		EntryID:   entry.ID,
		CreatedBy: actor.ID,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO repayments (loan_id, amount, principal, interest, method, entry_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at`,
		loan.ID, amount, principalPart, interestPart, method, entry.ID, actor.ID,
	).Scan(&repayment.ID, &repayment.CreatedAt)
	if err != nil {
		log.Printf("[LOANS] Repayment row insert failed for loan %d (entry %d): %v", loan.ID, entry.ID, err)
		return nil, &TransientStoreError{Op: "recordRepayment", Err: err}
	}

	newOutstanding := loan.OutstandingPrincipal - principalPart
	newStatus := loan.Status
	if newOutstanding <= 0 {
		newOutstanding = 0
		newStatus = models.LoanClosed
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE loans SET outstanding_principal = $1, status = $2 WHERE id = $3`,
		newOutstanding, string(newStatus), loan.ID)
	if err != nil {
		log.Printf("[LOANS] Outstanding update failed for loan %d: %v", loan.ID, err)
		return nil, &TransientStoreError{Op: "recordRepayment", Err: err}
	}

	s.audit.LogRepayment(loan.ID, entry.ID, amount)
	s.notifications.NotifyUser(ctx, loan.CreatedBy, "REPAYMENT",
		"Repayment collected", "Loan "+strconv.Itoa(loan.ID)+" received a repayment")
	return repayment, nil
}

// MarkOverdueLoans flags active loans past their due date with an unpaid
// balance. Run nightly by the scheduler; returns the number of loans flagged.
func (s *LoanService) MarkOverdueLoans(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loans SET status = 'OVERDUE'
		WHERE status = 'ACTIVE' AND due_date < NOW() AND outstanding_principal > 0`)
	if err != nil {
		return 0, &TransientStoreError{Op: "markOverdueLoans", Err: err}
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, &TransientStoreError{Op: "markOverdueLoans", Err: err}
	}
	return int(rows), nil
}

// OutstandingPortfolio sums unpaid principal over active and overdue loans,
// the external figure the balance sheet consumes.
func (s *LoanService) OutstandingPortfolio(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(outstanding_principal), 0)
		FROM loans WHERE status IN ('ACTIVE', 'OVERDUE')`,
	).Scan(&total)
	if err != nil {
		return 0, &TransientStoreError{Op: "outstandingPortfolio", Err: err}
	}
	return total, nil
}

func (s *LoanService) loanByID(ctx context.Context, loanID int) (*models.Loan, error) {
	var l models.Loan
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, principal, interest_rate, term_months, status,
		       outstanding_principal, created_by
		FROM loans WHERE id = $1`, loanID,
	).Scan(&l.ID, &l.ClientID, &l.Principal, &l.InterestRate, &l.TermMonths, &l.Status,
		&l.OutstandingPrincipal, &l.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "loan", Name: "id " + strconv.Itoa(loanID)}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "loanByID", Err: err}
	}
	return &l, nil
}

// splitRepayment divides an instalment between principal and interest for a
// flat-rate loan: the interest share of every instalment is rate/(100+rate),
// computed in decimal and rounded down so the principal side absorbs the
// remainder. Principal is capped at the outstanding balance; any excess is
// treated as interest.
func splitRepayment(amount, outstanding int64, rate string) (principal, interest int64, err error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return 0, 0, validationErrorf("loan has malformed interest rate %q", rate)
	}

	interest = decimal.NewFromInt(amount).
		Mul(r).
		Div(decimal.NewFromInt(100).Add(r)).
		Floor().
		IntPart()
	principal = amount - interest

	if principal > outstanding {
		interest += principal - outstanding
		principal = outstanding
	}
	return principal, interest, nil
}

func (s *LoanService) sendLoanError(w http.ResponseWriter, err error) {
	switch {
	case err == ErrForbidden:
		SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
	case IsValidation(err):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case IsNotFound(err):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	default:
		log.Printf("[LOANS] Store error: %v", err)
		SendErrorResponse(w, "Operation failed, please retry", http.StatusServiceUnavailable, nil)
	}
}
