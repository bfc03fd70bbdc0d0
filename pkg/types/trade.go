package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcomes of a finished execution session.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// ExecutionRecord summarizes one finished execution session for history.
type ExecutionRecord struct {
	SessionID  string
	TokenID    string
	Side       Side
	Kind       OrderKind
	Shares     decimal.Decimal
	Price      decimal.Decimal
	Total      decimal.Decimal
	Attempts   int
	AttemptIDs []string
	Salts      []string
	Outcome    string
	OrderID    string
	Status     string
	TxHashes   []string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time from confirmation to the terminal state.
func (r *ExecutionRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
