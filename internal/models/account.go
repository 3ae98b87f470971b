package models

import (
	"fmt"
	"time"
)

// AccountCategory classifies an account in the chart of accounts.
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "asset"
	CategoryLiability AccountCategory = "liability"
	CategoryEquity    AccountCategory = "equity"
	CategoryIncome    AccountCategory = "income"
	CategoryExpense   AccountCategory = "expense"
)

// ParseAccountCategory validates a category tag coming off the wire.
func ParseAccountCategory(s string) (AccountCategory, error) {
	switch AccountCategory(s) {
	case CategoryAsset, CategoryLiability, CategoryEquity, CategoryIncome, CategoryExpense:
		return AccountCategory(s), nil
	}
	return "", fmt.Errorf("unknown account category %q", s)
}

// Reserved account codes the injection/disbursement flows depend on.
const (
	CodeCapital   = "CAPITAL"
	CodeBank      = "BANK"
	CodeCash      = "CASH"
	CodeEquity    = "EQUITY"
	CodePortfolio = "PORTFOLIO"
	CodeMobile    = "MOBILE"
	CodeInterest  = "INTEREST"
)

// Account is one named ledger bucket. Balance is a cached projection in
// currency minor units, mutated only by the posting engine.
type Account struct {
	ID              int             `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Category        AccountCategory `json:"category" db:"category"`
	Code            string          `json:"code" db:"code"`
	BankName        string          `json:"bank_name,omitempty" db:"bank_name"`
	AccountNumber   string          `json:"account_number,omitempty" db:"account_number"`
	Balance         int64           `json:"balance" db:"balance"`
	IsSystemAccount bool            `json:"is_system_account" db:"is_system_account"`
	Version         int             `json:"version" db:"version"` // for optimistic locking
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// SignedDelta returns the balance effect of a (debit, credit) pair on this
// account given its category. Asset and expense accounts grow on the debit
// side, the rest grow on the credit side.
func (a *Account) SignedDelta(debit, credit int64) int64 {
	switch a.Category {
	case CategoryAsset, CategoryExpense:
		return debit - credit
	case CategoryLiability, CategoryEquity, CategoryIncome:
		return credit - debit
	}
	// Categories are validated on entry; an unknown tag here means the row
	// was written outside the application.
	panic(fmt.Sprintf("account %d has invalid category %q", a.ID, a.Category))
}
