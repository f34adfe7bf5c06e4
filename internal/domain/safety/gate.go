// Package safety decides whether a confirmed action may be executed.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Request carries everything one authorization needs. The gate never reads
// cached verdicts: each call re-evaluates every check.
type Request struct {
	Bot          domain.Bot
	Action       domain.Action
	Size         float64
	Confirmation domain.ConfirmationState
	Temperature  domain.Temperature
	Portfolio    domain.Portfolio
	Counters     domain.TradingCounters
	Halted       bool
	Now          time.Time
}

// Authorize runs the checks in fixed order and stops at the first failure.
//
//  1. emergency_stop
//  2. not_confirmed
//  3. cooldown_active
//  4. temperature_too_low
//  5. size_out_of_bounds
//  6. daily_loss_cap
//  7. insufficient_balance / insufficient_holdings
func Authorize(req Request) domain.SafetyVerdict {
	reject := func(reason domain.RejectReason, format string, args ...any) domain.SafetyVerdict {
		return domain.SafetyVerdict{
			Reason:    reason,
			Detail:    fmt.Sprintf(format, args...),
			CheckedAt: req.Now,
		}
	}
	b := req.Bot

	if req.Halted {
		return reject(domain.ReasonEmergencyStop, "emergency stop engaged")
	}

	if !req.Confirmation.ConfirmedFor(req.Action) {
		return reject(domain.ReasonNotConfirmed, "%s held %s of %s",
			req.Action, req.Confirmation.Elapsed(req.Now).Round(time.Second), b.ConfirmationWindow())
	}

	if cd := b.Cooldown(); cd > 0 && !req.Counters.LastTradeAt.IsZero() {
		if since := req.Now.Sub(req.Counters.LastTradeAt); since < cd {
			return reject(domain.ReasonCooldownActive, "%s left", (cd - since).Round(time.Second))
		}
	}

	if req.Temperature < b.MinTemperature {
		return reject(domain.ReasonTemperatureTooLow, "%s below %s", req.Temperature, b.MinTemperature)
	}

	if req.Size < b.MinPositionSize || req.Size > b.MaxPositionSize || req.Size <= 0 {
		return reject(domain.ReasonSizeOutOfBounds, "%.2f not within [%.2f, %.2f]",
			req.Size, b.MinPositionSize, b.MaxPositionSize)
	}

	if b.DailyLossCap > 0 {
		limit := decimal.NewFromFloat(b.DailyLossCap)
		// a loss exactly at the cap has not exceeded it
		if loss := req.Counters.LossOn(req.Now); loss.GreaterThan(limit) {
			return reject(domain.ReasonDailyLossCap, "lost %s today, cap %s", loss.StringFixed(2), limit.StringFixed(2))
		}
	}

	p := req.Portfolio
	switch req.Action {
	case domain.ActionBuy:
		if p.QuoteBalance < req.Size {
			return reject(domain.ReasonInsufficientBalance, "balance %.2f < %.2f", p.QuoteBalance, req.Size)
		}
	case domain.ActionSell:
		if p.Price <= 0 {
			return reject(domain.ReasonInsufficientHoldings, "no reference price for %s", b.Asset)
		}
		if value := p.BaseHoldings * p.Price; value < req.Size {
			return reject(domain.ReasonInsufficientHoldings, "holdings worth %.2f < %.2f", value, req.Size)
		}
	}

	return domain.SafetyVerdict{Approved: true, AdjustedSize: req.Size, CheckedAt: req.Now}
}

// Gate gathers the live inputs of Authorize: kill switch and counters are
// read fresh on every call.
type Gate struct {
	kill *Switch
	book *Book
}

func NewGate(kill *Switch, book *Book) *Gate {
	return &Gate{kill: kill, book: book}
}

// Check fills Halted and Counters in req and authorizes it. A kill switch
// that cannot be read counts as engaged.
func (g *Gate) Check(ctx context.Context, req Request) (domain.SafetyVerdict, error) {
	halted, err := g.kill.Engaged(ctx)
	if err != nil {
		slog.Warn("safety: kill switch unreadable, failing closed", "bot", req.Bot.ID, "err", err)
		halted = true
	}
	req.Halted = halted

	counters, err := g.book.Counters(ctx, req.Bot.ID)
	if err != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("safety.Check: %w", err)
	}
	req.Counters = counters
	return Authorize(req), nil
}
