package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/microvest/backoffice/internal/models"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	EntryID   int       `json:"entry_id,omitempty"`
	LoanID    int       `json:"loan_id,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger emits one structured line per ledger mutation. Journal entries are
// immutable, so this trail plus the line history is the complete audit record.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogPosting(entryID int, referenceType string, lines []models.ProposedLine) {
	var total int64
	for _, l := range lines {
		total += l.Debit
	}
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "POST_ENTRY",
		EntryID:   entryID,
		Status:    "COMMITTED",
		Details: map[string]any{
			"reference_type": referenceType,
			"lines":          len(lines),
			"total":          total,
		},
	})
}

func (a *Logger) LogDisbursement(loanID, entryID int, amount int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "DISBURSEMENT",
		EntryID:   entryID,
		LoanID:    loanID,
		Status:    "COMMITTED",
		Details:   map[string]int64{"amount": amount},
	})
}

func (a *Logger) LogRepayment(loanID, entryID int, amount int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "REPAYMENT",
		EntryID:   entryID,
		LoanID:    loanID,
		Status:    "COMMITTED",
		Details:   map[string]int64{"amount": amount},
	})
}

func (a *Logger) LogError(operation string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: operation,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
