package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfirmationState is the per-bot confirmation record. It is owned by the
// confirmation tracker; other packages only ever see copies.
type ConfirmationState struct {
	BotID       string        `json:"bot_id"`
	Action      Action        `json:"action"`
	Since       time.Time     `json:"since"`
	Required    time.Duration `json:"required"`
	Confirmed   bool          `json:"confirmed"`
	ConfirmedAt time.Time     `json:"confirmed_at,omitempty"`
}

// Elapsed returns how long the tracked action has been held at now.
func (c ConfirmationState) Elapsed(now time.Time) time.Duration {
	if c.Since.IsZero() || now.Before(c.Since) {
		return 0
	}
	return now.Sub(c.Since)
}

// ConfirmedFor reports whether the state confirms the given tradable action.
func (c ConfirmationState) ConfirmedFor(a Action) bool {
	return c.Confirmed && c.Action == a && a.Tradable()
}

// RejectReason is the machine-readable cause of a failed safety check.
type RejectReason string

const (
	ReasonNone                 RejectReason = ""
	ReasonEmergencyStop        RejectReason = "emergency_stop"
	ReasonNotConfirmed         RejectReason = "not_confirmed"
	ReasonCooldownActive       RejectReason = "cooldown_active"
	ReasonTemperatureTooLow    RejectReason = "temperature_too_low"
	ReasonSizeOutOfBounds      RejectReason = "size_out_of_bounds"
	ReasonDailyLossCap         RejectReason = "daily_loss_cap"
	ReasonInsufficientBalance  RejectReason = "insufficient_balance"
	ReasonInsufficientHoldings RejectReason = "insufficient_holdings"
)

// SafetyVerdict is the outcome of one authorization attempt. It is never
// cached.
type SafetyVerdict struct {
	Approved     bool         `json:"approved"`
	Reason       RejectReason `json:"reason,omitempty"`
	Detail       string       `json:"detail,omitempty"`
	AdjustedSize float64      `json:"adjusted_size"`
	CheckedAt    time.Time    `json:"checked_at"`
}

// TradingCounters are the per-bot cooldown and daily-loss counters.
type TradingCounters struct {
	BotID       string
	LastTradeAt time.Time
	Day         time.Time // UTC midnight of the loss bucket
	DailyLoss   decimal.Decimal
}

// LossOn returns the accumulated loss for the UTC day containing now.
func (c TradingCounters) LossOn(now time.Time) decimal.Decimal {
	if !c.Day.Equal(UTCDay(now)) {
		return decimal.Zero
	}
	return c.DailyLoss
}

// UTCDay truncates t to UTC midnight.
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Portfolio is the balance view used by the safety gate.
type Portfolio struct {
	Asset        string
	QuoteBalance float64 // spendable quote currency
	BaseHoldings float64 // units of the asset held
	Price        float64 // reference price for the asset
}

// Execution is the successful response of an executor.
type Execution struct {
	OrderID     string
	Status      string
	FilledSize  float64
	FillPrice   float64
	RealizedPnL float64
}

// AttemptOutcome classifies a ledger entry.
type AttemptOutcome string

const (
	OutcomeRejected        AttemptOutcome = "rejected"
	OutcomeApproved        AttemptOutcome = "approved"
	OutcomeExecuted        AttemptOutcome = "executed"
	OutcomeExecutionFailed AttemptOutcome = "execution_failed"
)

// TradeAttempt is one audit-ledger entry.
type TradeAttempt struct {
	ID             string
	BotID          string
	Asset          string
	Action         Action
	Size           float64
	Outcome        AttemptOutcome
	Reason         string
	OrderID        string
	ExecStatus     string
	RealizedPnL    decimal.Decimal
	Reconciliation bool
	CreatedAt      time.Time
}
