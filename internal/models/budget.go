package models

import "time"

// Budget is a planned monthly amount for one account category. Month is the
// first day of the budgeted month; Amount is currency minor units.
type Budget struct {
	ID        int             `json:"id" db:"id"`
	Category  AccountCategory `json:"category" db:"category"`
	Month     time.Time       `json:"month" db:"month"`
	Amount    int64           `json:"amount" db:"amount"`
	CreatedBy int             `json:"created_by" db:"created_by"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// BudgetVariance compares actual movement against the budgeted amount.
// Percentage is nil when the budget is zero (the ratio is undefined).
type BudgetVariance struct {
	Category   AccountCategory `json:"category"`
	Month      string          `json:"month"`
	Budgeted   int64           `json:"budgeted"`
	Actual     int64           `json:"actual"`
	Variance   int64           `json:"variance"`
	Percentage *string         `json:"percentage,omitempty"`
}
