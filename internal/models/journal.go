package models

import (
	"fmt"
	"time"
)

// ReferenceType tags a journal entry with the business flow that produced it.
// It is used for reporting and filtering only; validation rules are identical
// for every type.
type ReferenceType string

const (
	RefInjection    ReferenceType = "injection"
	RefTransfer     ReferenceType = "transfer"
	RefDisbursement ReferenceType = "disbursement"
	RefRepayment    ReferenceType = "repayment"
)

func ParseReferenceType(s string) (ReferenceType, error) {
	switch ReferenceType(s) {
	case RefInjection, RefTransfer, RefDisbursement, RefRepayment:
		return ReferenceType(s), nil
	}
	return "", fmt.Errorf("unknown reference type %q", s)
}

// JournalEntry is one balanced economic event. Entries are append-only and
// immutable once committed.
type JournalEntry struct {
	ID              int           `json:"id" db:"id"`
	ReferenceType   ReferenceType `json:"reference_type" db:"reference_type"`
	RelatedEntityID *int          `json:"related_entity_id,omitempty" db:"related_entity_id"`
	Description     string        `json:"description" db:"description"`
	CreatedBy       int           `json:"created_by" db:"created_by"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	Lines           []JournalLine `json:"lines,omitempty"`
}

// JournalLine is one account-level effect within an entry. Exactly one of
// Debit/Credit is nonzero. Amounts are currency minor units.
type JournalLine struct {
	ID        int       `json:"id" db:"id"`
	EntryID   int       `json:"entry_id" db:"entry_id"`
	AccountID int       `json:"account_id" db:"account_id"`
	Debit     int64     `json:"debit" db:"debit"`
	Credit    int64     `json:"credit" db:"credit"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProposedLine is the caller-supplied form of a line, before posting.
type ProposedLine struct {
	AccountID int   `json:"accountId" validate:"required,gt=0"`
	Debit     int64 `json:"debit" validate:"gte=0"`
	Credit    int64 `json:"credit" validate:"gte=0"`
}
