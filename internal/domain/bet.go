package domain

import (
	"fmt"
	"time"
)

// BetOutcome is the lifecycle state of a persisted bet.
type BetOutcome string

const (
	OutcomePending BetOutcome = "pending"
	OutcomeWin     BetOutcome = "win"
	OutcomeLoss    BetOutcome = "loss"
)

// Bet is the only durable entity: one row per confirmed fill. Born pending,
// settled exactly once by the monitor, never deleted.
type Bet struct {
	ID           int64  // ledger rowid
	LocalID      string // UUID assigned before the venue order id is known
	SportID      string
	GameID       string
	EventTitle   string
	TokenID      string
	BuyLabel     string // "YES" | "NO"
	FavoriteTeam string
	Odds         float64
	ImpliedProb  float64
	EntryPrice   float64
	Gap          float64
	StakeUSDC    float64
	OrderID      string // venue order id
	CommenceTime time.Time
	PlacedAt     time.Time
	Outcome      BetOutcome
	PnLUSDC      *float64
	SettledAt    *time.Time
}

// Shares returns the number of shares bought (stake / entry price).
func (b Bet) Shares() float64 {
	if b.EntryPrice <= 0 {
		return 0
	}
	return b.StakeUSDC / b.EntryPrice
}

// WinPnL returns the realized profit if the position resolves to $1:
// (1 - entry) * shares.
func (b Bet) WinPnL() float64 {
	return (1 - b.EntryPrice) * b.Shares()
}

// LedgerStats are the aggregates derived from the bet history.
type LedgerStats struct {
	Total    int
	Wins     int
	Losses   int
	Pending  int
	TotalPnL float64
}

// ExecutionStatus classifies the result of one execution attempt.
type ExecutionStatus string

const (
	ExecMatched      ExecutionStatus = "matched"
	ExecDelayed      ExecutionStatus = "delayed"
	ExecSkipped      ExecutionStatus = "skipped"
	ExecFOKCancelled ExecutionStatus = "fok_cancelled"
	ExecError        ExecutionStatus = "error"
)

// ExecutionResult is the outcome of executing one opportunity.
// The executor never returns an error: every failure path is a status here.
type ExecutionResult struct {
	Status      ExecutionStatus
	OrderID     string
	Message     string
	Opportunity ArbitrageOpportunity
	Timestamp   time.Time
}

// Success reports whether the order filled (matched now or after the venue's
// short confirmation delay).
func (r ExecutionResult) Success() bool {
	return r.Status == ExecMatched || r.Status == ExecDelayed
}

func (r ExecutionResult) String() string {
	return fmt.Sprintf("[%s] %s | $%.0f @ %.2f | %s",
		r.Status, r.Opportunity.EventTitle(),
		r.Opportunity.StakeUSDC, r.Opportunity.BestAsk, r.Message)
}
