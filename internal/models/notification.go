package models

import "time"

// Notification is an in-app message for a staff user. The realtime feed is a
// separate notify-and-pull channel; rows here are the durable copy.
type Notification struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Kind      string    `json:"kind" db:"kind"` // LEDGER, LOAN, REPAYMENT, SYSTEM
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChangeEvent is published on the Redis feed after a successful posting so
// open UI sessions can re-fetch. Consumers must treat it as a hint, never as
// the source of truth.
type ChangeEvent struct {
	Kind      string    `json:"kind"`
	EntryID   int       `json:"entry_id,omitempty"`
	Accounts  []int     `json:"accounts,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
