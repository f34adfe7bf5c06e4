package storage

// state.go: estado de trading por bot: confirmación, contadores del safety
// gate, ledger de intentos y flags globales.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// LoadConfirmation devuelve domain.ErrStateCorrupted si la fila no se puede
// interpretar; el tracker decide cómo recuperarse.
func (s *SQLiteStorage) LoadConfirmation(ctx context.Context, botID string) (domain.ConfirmationState, bool, error) {
	var (
		action, since, confirmedAt string
		requiredNs                 int64
		confirmed                  int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT action, since, required_ns, confirmed, confirmed_at
		FROM confirmations WHERE bot_id = ?`, botID).Scan(
		&action, &since, &requiredNs, &confirmed, &confirmedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ConfirmationState{}, false, nil
	}
	if err != nil {
		return domain.ConfirmationState{}, false, fmt.Errorf("storage.LoadConfirmation: %w", err)
	}

	corrupted := func(cause error) error {
		return fmt.Errorf("storage.LoadConfirmation: %s: %w: %v", botID, domain.ErrStateCorrupted, cause)
	}
	st := domain.ConfirmationState{
		BotID:     botID,
		Required:  time.Duration(requiredNs),
		Confirmed: confirmed == 1,
	}
	if st.Action, err = domain.ParseAction(action); err != nil {
		return domain.ConfirmationState{}, false, corrupted(err)
	}
	if st.Since, err = parseTime(since); err != nil || st.Since.IsZero() {
		return domain.ConfirmationState{}, false, corrupted(fmt.Errorf("since %q", since))
	}
	if st.ConfirmedAt, err = parseTime(confirmedAt); err != nil {
		return domain.ConfirmationState{}, false, corrupted(err)
	}
	if requiredNs < 0 || (confirmed != 0 && confirmed != 1) || (st.Confirmed && st.ConfirmedAt.IsZero()) {
		return domain.ConfirmationState{}, false, corrupted(errors.New("inconsistent fields"))
	}
	return st, true, nil
}

func (s *SQLiteStorage) SaveConfirmation(ctx context.Context, st domain.ConfirmationState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO confirmations (bot_id, action, since, required_ns, confirmed, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET
			action       = excluded.action,
			since        = excluded.since,
			required_ns  = excluded.required_ns,
			confirmed    = excluded.confirmed,
			confirmed_at = excluded.confirmed_at`,
		st.BotID, string(st.Action), formatTime(st.Since), int64(st.Required),
		boolInt(st.Confirmed), formatTime(st.ConfirmedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveConfirmation: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteConfirmation(ctx context.Context, botID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM confirmations WHERE bot_id = ?`, botID); err != nil {
		return fmt.Errorf("storage.DeleteConfirmation: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadCounters(ctx context.Context, botID string) (domain.TradingCounters, bool, error) {
	var lastTrade, day, loss string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_trade_at, loss_day, daily_loss FROM trading_counters WHERE bot_id = ?`, botID).Scan(
		&lastTrade, &day, &loss,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TradingCounters{}, false, nil
	}
	if err != nil {
		return domain.TradingCounters{}, false, fmt.Errorf("storage.LoadCounters: %w", err)
	}

	c := domain.TradingCounters{BotID: botID}
	if c.LastTradeAt, err = parseTime(lastTrade); err != nil {
		return domain.TradingCounters{}, false, fmt.Errorf("storage.LoadCounters: last_trade_at: %w", err)
	}
	if c.Day, err = parseTime(day); err != nil {
		return domain.TradingCounters{}, false, fmt.Errorf("storage.LoadCounters: loss_day: %w", err)
	}
	if c.DailyLoss, err = decimal.NewFromString(loss); err != nil {
		return domain.TradingCounters{}, false, fmt.Errorf("storage.LoadCounters: daily_loss: %w", err)
	}
	return c, true, nil
}

func (s *SQLiteStorage) SaveCounters(ctx context.Context, c domain.TradingCounters) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trading_counters (bot_id, last_trade_at, loss_day, daily_loss)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET
			last_trade_at = excluded.last_trade_at,
			loss_day      = excluded.loss_day,
			daily_loss    = excluded.daily_loss`,
		c.BotID, formatTime(c.LastTradeAt), formatTime(c.Day), c.DailyLoss.String(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCounters: %w", err)
	}
	return nil
}

// SaveAttempt hace upsert por id: un intento aprobado se actualiza luego con
// el resultado de la ejecución.
func (s *SQLiteStorage) SaveAttempt(ctx context.Context, a domain.TradeAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_attempts
			(id, bot_id, asset, action, size, outcome, reason, order_id,
			 exec_status, realized_pnl, reconciliation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome        = excluded.outcome,
			reason         = excluded.reason,
			order_id       = excluded.order_id,
			exec_status    = excluded.exec_status,
			realized_pnl   = excluded.realized_pnl,
			reconciliation = excluded.reconciliation`,
		a.ID, a.BotID, a.Asset, string(a.Action), a.Size, string(a.Outcome), a.Reason,
		a.OrderID, a.ExecStatus, a.RealizedPnL.String(), boolInt(a.Reconciliation),
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveAttempt: %s: %w", a.ID, err)
	}
	return nil
}

// ListAttempts devuelve los intentos más recientes primero.
func (s *SQLiteStorage) ListAttempts(ctx context.Context, botID string, limit int) ([]domain.TradeAttempt, error) {
	if limit <= 0 {
		limit = -1 // sin límite en SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bot_id, asset, action, size, outcome, reason, order_id,
		       exec_status, realized_pnl, reconciliation, created_at
		FROM trade_attempts
		WHERE bot_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListAttempts: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeAttempt
	for rows.Next() {
		var (
			a                        domain.TradeAttempt
			action, outcome, pnl, at string
			recon                    int
		)
		if err := rows.Scan(
			&a.ID, &a.BotID, &a.Asset, &action, &a.Size, &outcome, &a.Reason, &a.OrderID,
			&a.ExecStatus, &pnl, &recon, &at,
		); err != nil {
			return nil, fmt.Errorf("storage.ListAttempts: scan row: %w", err)
		}
		a.Action = domain.Action(action)
		a.Outcome = domain.AttemptOutcome(outcome)
		a.Reconciliation = recon == 1
		a.RealizedPnL, _ = decimal.NewFromString(pnl)
		a.CreatedAt, _ = parseTime(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetFlag devuelve false si el flag nunca se escribió.
func (s *SQLiteStorage) GetFlag(ctx context.Context, name string) (bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM flags WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.GetFlag: %w", err)
	}
	return v != 0, nil
}

func (s *SQLiteStorage) SetFlag(ctx context.Context, name string, value bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flags (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, boolInt(value), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("storage.SetFlag: %w", err)
	}
	return nil
}
