package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/domain/safety"
)

// trade authorizes the confirmed action and, when approved, executes it.
// Every authorization outcome lands in the ledger.
func (e *Evaluator) trade(ctx context.Context, bot domain.Bot, res Result, now time.Time) (*domain.SafetyVerdict, *ExecutionReport, error) {
	ctx, span := e.tracer.Start(ctx, "evaluator.trade")
	defer span.End()

	portfolio, err := e.deps.Portfolio.Portfolio(ctx, bot.Asset)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluator.trade: portfolio: %w", err)
	}

	verdict, err := e.deps.Gate.Check(ctx, safety.Request{
		Bot:          bot,
		Action:       res.Action,
		Size:         bot.PositionSize,
		Confirmation: res.Confirmation,
		Temperature:  res.Temperature,
		Portfolio:    portfolio,
		Now:          now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("evaluator.trade: %w", err)
	}
	span.SetAttributes(attribute.Bool("safety.approved", verdict.Approved), attribute.String("safety.reason", string(verdict.Reason)))

	if !verdict.Approved {
		return &verdict, nil, e.reject(ctx, bot, res.Action, verdict)
	}

	prev, ok, err := e.deps.Book.Consume(ctx, bot.ID, bot.Cooldown(), now)
	if err != nil {
		return &verdict, nil, fmt.Errorf("evaluator.trade: %w", err)
	}
	if !ok {
		// another process started the cooldown after the gate read the counters
		verdict = domain.SafetyVerdict{Reason: domain.ReasonCooldownActive, Detail: "cooldown started concurrently", CheckedAt: now}
		return &verdict, nil, e.reject(ctx, bot, res.Action, verdict)
	}

	attempt := domain.TradeAttempt{
		ID:          uuid.NewString(),
		BotID:       bot.ID,
		Asset:       bot.Asset,
		Action:      res.Action,
		Size:        verdict.AdjustedSize,
		Outcome:     domain.OutcomeApproved,
		RealizedPnL: decimal.Zero,
		CreatedAt:   now,
	}
	if err := e.deps.Ledger.SaveAttempt(ctx, attempt); err != nil {
		// without an audit entry the order is not sent
		if rerr := e.deps.Book.Restore(ctx, bot.ID, prev); rerr != nil {
			slog.Error("evaluator: restore cooldown failed", "bot", bot.ID, "err", rerr)
		}
		return &verdict, nil, fmt.Errorf("evaluator.trade: save attempt: %w", err)
	}

	report := e.execute(ctx, bot, &attempt, prev)
	return &verdict, report, nil
}

func (e *Evaluator) reject(ctx context.Context, bot domain.Bot, action domain.Action, verdict domain.SafetyVerdict) error {
	slog.Info("evaluator: trade rejected by safety gate",
		"bot", bot.ID,
		"action", action,
		"reason", verdict.Reason,
		"detail", verdict.Detail,
	)
	e.deps.Metrics.IncRejection(bot.ID, verdict.Reason)

	attempt := domain.TradeAttempt{
		ID:          uuid.NewString(),
		BotID:       bot.ID,
		Asset:       bot.Asset,
		Action:      action,
		Size:        bot.PositionSize,
		Outcome:     domain.OutcomeRejected,
		Reason:      string(verdict.Reason),
		RealizedPnL: decimal.Zero,
		CreatedAt:   verdict.CheckedAt,
	}
	if err := e.deps.Ledger.SaveAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("evaluator.reject: save attempt: %w", err)
	}
	return nil
}

// execute sends the order and settles the approved attempt. The cooldown was
// consumed by the caller; only a definitive rejection gives it back.
func (e *Evaluator) execute(ctx context.Context, bot domain.Bot, attempt *domain.TradeAttempt, prev time.Time) *ExecutionReport {
	ctx, span := e.tracer.Start(ctx, "evaluator.execute")
	defer span.End()

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecuteTimeout)
	exec, err := e.deps.Executor.Execute(execCtx, bot.Asset, attempt.Action, attempt.Size)
	cancel()

	report := &ExecutionReport{AttemptID: attempt.ID}

	if err != nil {
		span.RecordError(err)
		fail := domain.AsExecutionError(err)
		report.Failure = fail
		attempt.Outcome = domain.OutcomeExecutionFailed
		attempt.Reason = string(fail.Kind)
		attempt.ExecStatus = fail.Message

		if fail.NeedsReconciliation() {
			attempt.Reconciliation = true
			report.Reconciliation = true
			slog.Error("evaluator: order outcome unknown, reconciliation required",
				"bot", bot.ID, "attempt", attempt.ID, "kind", fail.Kind, "err", fail.Message)
		} else {
			if rerr := e.deps.Book.Restore(ctx, bot.ID, prev); rerr != nil {
				slog.Error("evaluator: restore cooldown failed", "bot", bot.ID, "err", rerr)
			}
			slog.Warn("evaluator: order rejected by executor, cooldown restored",
				"bot", bot.ID, "attempt", attempt.ID, "err", fail.Message)
		}
		e.settle(ctx, *attempt)
		return report
	}

	pnl := decimal.NewFromFloat(exec.RealizedPnL)
	attempt.Outcome = domain.OutcomeExecuted
	attempt.OrderID = exec.OrderID
	attempt.ExecStatus = exec.Status
	attempt.RealizedPnL = pnl
	report.Execution = &exec

	e.settle(ctx, *attempt)
	if err := e.deps.Book.RecordRealized(ctx, bot.ID, pnl, attempt.CreatedAt); err != nil {
		slog.Error("evaluator: record realized pnl failed", "bot", bot.ID, "pnl", pnl.String(), "err", err)
	}

	slog.Info("evaluator: order executed",
		"bot", bot.ID,
		"action", attempt.Action,
		"size", fmt.Sprintf("%.2f", attempt.Size),
		"order", exec.OrderID,
		"price", exec.FillPrice,
		"pnl", pnl.StringFixed(2),
	)
	return report
}

func (e *Evaluator) settle(ctx context.Context, attempt domain.TradeAttempt) {
	e.deps.Metrics.IncExecution(attempt.BotID, attempt.Outcome)
	if err := e.deps.Ledger.SaveAttempt(ctx, attempt); err != nil {
		slog.Error("evaluator: ledger update failed",
			"bot", attempt.BotID, "attempt", attempt.ID, "outcome", attempt.Outcome, "err", err)
	}
}
