package models

import "time"

// LoanStatus tracks a loan through origination, approval, disbursement and
// close-out.
type LoanStatus string

const (
	LoanPending  LoanStatus = "PENDING"
	LoanApproved LoanStatus = "APPROVED"
	LoanActive   LoanStatus = "ACTIVE"
	LoanOverdue  LoanStatus = "OVERDUE"
	LoanClosed   LoanStatus = "CLOSED"
	LoanRejected LoanStatus = "REJECTED"
)

// Client is a borrower record in the CRM.
type Client struct {
	ID          int       `json:"id" db:"id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Email       string    `json:"email,omitempty" db:"email"`
	NationalID  string    `json:"national_id" db:"national_id"`
	Address     string    `json:"address,omitempty" db:"address"`
	PhotoPath   string    `json:"photo_path,omitempty" db:"photo_path"`
	CreatedBy   int       `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Loan amounts are currency minor units. InterestRate is flat-rate percent
// over the whole term, stored as a string decimal (e.g. "12.5").
type Loan struct {
	ID                   int        `json:"id" db:"id"`
	ClientID             int        `json:"client_id" db:"client_id"`
	Principal            int64      `json:"principal" db:"principal"`
	InterestRate         string     `json:"interest_rate" db:"interest_rate"`
	TermMonths           int        `json:"term_months" db:"term_months"`
	Status               LoanStatus `json:"status" db:"status"`
	Purpose              string     `json:"purpose,omitempty" db:"purpose"`
	OutstandingPrincipal int64      `json:"outstanding_principal" db:"outstanding_principal"`
	DisbursementBankCode string     `json:"disbursement_bank_code,omitempty" db:"disbursement_bank_code"`
	DisbursementAccount  string     `json:"disbursement_account,omitempty" db:"disbursement_account"`
	CreatedBy            int        `json:"created_by" db:"created_by"`
	ApprovedBy           *int       `json:"approved_by,omitempty" db:"approved_by"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	DisbursedAt          *time.Time `json:"disbursed_at,omitempty" db:"disbursed_at"`
	DueDate              *time.Time `json:"due_date,omitempty" db:"due_date"`
}

// Repayment is one collected instalment, split into its principal and
// interest portions. EntryID references the journal entry that recorded it.
type Repayment struct {
	ID        int       `json:"id" db:"id"`
	LoanID    int       `json:"loan_id" db:"loan_id"`
	Amount    int64     `json:"amount" db:"amount"`
	Principal int64     `json:"principal" db:"principal"`
	Interest  int64     `json:"interest" db:"interest"`
	Method    string    `json:"method" db:"method"` // CASH or BANK
	EntryID   int       `json:"entry_id" db:"entry_id"`
	CreatedBy int       `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
