package storage

// sqlite.go: estado durable del motor de señales.
//
// Tablas:
//   - `bots`: configuración completa de cada bot (signals como JSON).
//   - `bot_snapshots`: UNA fila por bot (UPSERT) con la última evaluación.
//   - `confirmations`: estado del confirmation tracker; fuente de verdad tras
//     un reinicio.
//   - `trading_counters`: cooldown y pérdida diaria por bot.
//   - `trade_attempts`: ledger de auditoría (aprobados y rechazados).
//   - `flags`: flags globales (emergency stop).
//
// Los tiempos se guardan como TEXT de ancho fijo en UTC para no depender del
// parseo de DATETIME del driver.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bots (
    id                   TEXT PRIMARY KEY,
    asset                TEXT NOT NULL,
    granularity          TEXT NOT NULL,
    lookback             INTEGER NOT NULL,
    signals              TEXT NOT NULL,          -- JSON map type → config
    buy_threshold        REAL NOT NULL,
    sell_threshold       REAL NOT NULL,
    renormalize          INTEGER NOT NULL DEFAULT 0,
    confirmation_minutes REAL NOT NULL DEFAULT 0,
    cooldown_minutes     REAL NOT NULL DEFAULT 0,
    position_size        REAL NOT NULL,
    min_position_size    REAL NOT NULL DEFAULT 0,
    max_position_size    REAL NOT NULL,
    min_temperature      TEXT NOT NULL DEFAULT 'FROZEN',
    daily_loss_cap       REAL NOT NULL DEFAULT 0,
    profile              TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bot_snapshots (
    bot_id       TEXT PRIMARY KEY,
    score        REAL NOT NULL,
    action       TEXT NOT NULL,
    temperature  TEXT NOT NULL,
    no_signal    INTEGER NOT NULL DEFAULT 0,
    confirmation TEXT NOT NULL,                  -- JSON ConfirmationState
    evaluated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS confirmations (
    bot_id       TEXT PRIMARY KEY,
    action       TEXT NOT NULL,
    since        TEXT NOT NULL,
    required_ns  INTEGER NOT NULL,
    confirmed    INTEGER NOT NULL DEFAULT 0,
    confirmed_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trading_counters (
    bot_id        TEXT PRIMARY KEY,
    last_trade_at TEXT NOT NULL DEFAULT '',
    loss_day      TEXT NOT NULL DEFAULT '',
    daily_loss    TEXT NOT NULL DEFAULT '0'       -- decimal string
);

CREATE TABLE IF NOT EXISTS trade_attempts (
    id             TEXT PRIMARY KEY,
    bot_id         TEXT NOT NULL,
    asset          TEXT NOT NULL,
    action         TEXT NOT NULL,
    size           REAL NOT NULL,
    outcome        TEXT NOT NULL,
    reason         TEXT NOT NULL DEFAULT '',
    order_id       TEXT NOT NULL DEFAULT '',
    exec_status    TEXT NOT NULL DEFAULT '',
    realized_pnl   TEXT NOT NULL DEFAULT '0',
    reconciliation INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_bot ON trade_attempts(bot_id, created_at DESC);

CREATE TABLE IF NOT EXISTS flags (
    name       TEXT PRIMARY KEY,
    value      INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);
`

const (
	retentionAttempts = 90 * 24 * time.Hour // ledger: 90 días

	// ancho fijo: el orden lexicográfico coincide con el cronológico
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStorage implementa los stores de ports usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia intentos antiguos del ledger.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina intentos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := formatTime(time.Now().Add(-retentionAttempts))
	s.db.ExecContext(ctx, `DELETE FROM trade_attempts WHERE created_at < ?`, cutoff)
}

// formatTime devuelve "" para el tiempo cero.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
