package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// SaveBot hace upsert de la configuración del bot. created_at se conserva.
func (s *SQLiteStorage) SaveBot(ctx context.Context, b domain.Bot) error {
	signals, err := json.Marshal(b.Signals)
	if err != nil {
		return fmt.Errorf("storage.SaveBot: encode signals: %w", err)
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bots
			(id, asset, granularity, lookback, signals, buy_threshold, sell_threshold,
			 renormalize, confirmation_minutes, cooldown_minutes, position_size,
			 min_position_size, max_position_size, min_temperature, daily_loss_cap,
			 profile, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			asset                = excluded.asset,
			granularity          = excluded.granularity,
			lookback             = excluded.lookback,
			signals              = excluded.signals,
			buy_threshold        = excluded.buy_threshold,
			sell_threshold       = excluded.sell_threshold,
			renormalize          = excluded.renormalize,
			confirmation_minutes = excluded.confirmation_minutes,
			cooldown_minutes     = excluded.cooldown_minutes,
			position_size        = excluded.position_size,
			min_position_size    = excluded.min_position_size,
			max_position_size    = excluded.max_position_size,
			min_temperature      = excluded.min_temperature,
			daily_loss_cap       = excluded.daily_loss_cap,
			profile              = excluded.profile,
			updated_at           = excluded.updated_at`,
		b.ID, b.Asset, string(b.Granularity), b.Lookback, string(signals),
		b.BuyThreshold, b.SellThreshold, boolInt(b.Renormalize),
		b.ConfirmationMinutes, b.CooldownMinutes, b.PositionSize,
		b.MinPositionSize, b.MaxPositionSize, b.MinTemperature.String(), b.DailyLossCap,
		b.Profile, formatTime(b.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveBot: upsert %s: %w", b.ID, err)
	}
	return nil
}

const botColumns = `
	id, asset, granularity, lookback, signals, buy_threshold, sell_threshold,
	renormalize, confirmation_minutes, cooldown_minutes, position_size,
	min_position_size, max_position_size, min_temperature, daily_loss_cap,
	profile, created_at, updated_at`

// GetBot devuelve domain.ErrBotNotFound si el id no existe.
func (s *SQLiteStorage) GetBot(ctx context.Context, id string) (domain.Bot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM bots WHERE id = ?`, id)
	b, err := scanBot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bot{}, fmt.Errorf("storage.GetBot: %s: %w", id, domain.ErrBotNotFound)
	}
	if err != nil {
		return domain.Bot{}, fmt.Errorf("storage.GetBot: %s: %w", id, err)
	}
	return b, nil
}

// ListBots devuelve todos los bots ordenados por id.
func (s *SQLiteStorage) ListBots(ctx context.Context) ([]domain.Bot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+botColumns+` FROM bots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListBots: query: %w", err)
	}
	defer rows.Close()

	var bots []domain.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListBots: scan row: %w", err)
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

// DeleteBot borra el bot y todo su estado salvo el ledger, que es auditoría.
func (s *SQLiteStorage) DeleteBot(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.DeleteBot: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM bots WHERE id = ?`,
		`DELETE FROM bot_snapshots WHERE bot_id = ?`,
		`DELETE FROM confirmations WHERE bot_id = ?`,
		`DELETE FROM trading_counters WHERE bot_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("storage.DeleteBot: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.DeleteBot: commit: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBot(row scanner) (domain.Bot, error) {
	var (
		b                   domain.Bot
		gran, signals, temp string
		created, updated    string
		renormalize         int
	)
	if err := row.Scan(
		&b.ID, &b.Asset, &gran, &b.Lookback, &signals, &b.BuyThreshold, &b.SellThreshold,
		&renormalize, &b.ConfirmationMinutes, &b.CooldownMinutes, &b.PositionSize,
		&b.MinPositionSize, &b.MaxPositionSize, &temp, &b.DailyLossCap,
		&b.Profile, &created, &updated,
	); err != nil {
		return domain.Bot{}, err
	}

	b.Granularity = domain.Granularity(gran)
	b.Renormalize = renormalize == 1
	if err := json.Unmarshal([]byte(signals), &b.Signals); err != nil {
		return domain.Bot{}, fmt.Errorf("decode signals of %s: %w", b.ID, err)
	}
	var err error
	if b.MinTemperature, err = domain.ParseTemperature(temp); err != nil {
		return domain.Bot{}, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return domain.Bot{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Bot{}, err
	}
	return b, nil
}

// SaveSnapshot sobrescribe la última evaluación del bot.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap domain.BotSnapshot) error {
	conf, err := json.Marshal(snap.Confirmation)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: encode confirmation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bot_snapshots (bot_id, score, action, temperature, no_signal, confirmation, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET
			score        = excluded.score,
			action       = excluded.action,
			temperature  = excluded.temperature,
			no_signal    = excluded.no_signal,
			confirmation = excluded.confirmation,
			evaluated_at = excluded.evaluated_at`,
		snap.BotID, snap.Score, string(snap.Action), snap.Temperature.String(),
		boolInt(snap.NoSignal), string(conf), formatTime(snap.EvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: upsert %s: %w", snap.BotID, err)
	}
	return nil
}

// LatestSnapshot devuelve ok=false si el bot nunca se evaluó.
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context, botID string) (domain.BotSnapshot, bool, error) {
	var (
		snap                           domain.BotSnapshot
		action, temp, conf, evaluated string
		noSignal                       int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT bot_id, score, action, temperature, no_signal, confirmation, evaluated_at
		FROM bot_snapshots WHERE bot_id = ?`, botID).Scan(
		&snap.BotID, &snap.Score, &action, &temp, &noSignal, &conf, &evaluated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BotSnapshot{}, false, nil
	}
	if err != nil {
		return domain.BotSnapshot{}, false, fmt.Errorf("storage.LatestSnapshot: %w", err)
	}

	snap.NoSignal = noSignal == 1
	if snap.Action, err = domain.ParseAction(action); err != nil {
		return domain.BotSnapshot{}, false, fmt.Errorf("storage.LatestSnapshot: %w", err)
	}
	if snap.Temperature, err = domain.ParseTemperature(temp); err != nil {
		return domain.BotSnapshot{}, false, fmt.Errorf("storage.LatestSnapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(conf), &snap.Confirmation); err != nil {
		return domain.BotSnapshot{}, false, fmt.Errorf("storage.LatestSnapshot: decode confirmation: %w", err)
	}
	if snap.EvaluatedAt, err = parseTime(evaluated); err != nil {
		return domain.BotSnapshot{}, false, fmt.Errorf("storage.LatestSnapshot: %w", err)
	}
	return snap, true, nil
}
