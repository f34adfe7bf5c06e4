package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// BotStore persiste la configuración de los bots y su último snapshot.
type BotStore interface {
	// SaveBot inserta o actualiza la configuración completa del bot.
	SaveBot(ctx context.Context, bot domain.Bot) error

	// GetBot devuelve domain.ErrBotNotFound si el id no existe.
	GetBot(ctx context.Context, id string) (domain.Bot, error)

	// ListBots devuelve todos los bots ordenados por id.
	ListBots(ctx context.Context) ([]domain.Bot, error)

	// DeleteBot borra el bot y todo su estado asociado.
	DeleteBot(ctx context.Context, id string) error

	// SaveSnapshot guarda el resultado de la última evaluación.
	SaveSnapshot(ctx context.Context, snap domain.BotSnapshot) error

	// LatestSnapshot devuelve ok=false si el bot nunca se evaluó.
	LatestSnapshot(ctx context.Context, botID string) (domain.BotSnapshot, bool, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// ConfirmationStore es el límite de durabilidad del confirmation tracker.
type ConfirmationStore interface {
	// LoadConfirmation devuelve ok=false si no hay estado guardado y
	// domain.ErrStateCorrupted si el registro no se puede interpretar.
	LoadConfirmation(ctx context.Context, botID string) (domain.ConfirmationState, bool, error)
	SaveConfirmation(ctx context.Context, state domain.ConfirmationState) error
	DeleteConfirmation(ctx context.Context, botID string) error
}

// CountersStore persiste cooldown y pérdida diaria por bot.
type CountersStore interface {
	LoadCounters(ctx context.Context, botID string) (domain.TradingCounters, bool, error)
	SaveCounters(ctx context.Context, c domain.TradingCounters) error
}

// LedgerStore es el registro de auditoría de intentos de trade.
type LedgerStore interface {
	SaveAttempt(ctx context.Context, a domain.TradeAttempt) error

	// ListAttempts devuelve los intentos más recientes primero. limit <= 0
	// devuelve todos.
	ListAttempts(ctx context.Context, botID string, limit int) ([]domain.TradeAttempt, error)
}

// FlagStore guarda flags globales como el emergency stop.
type FlagStore interface {
	// GetFlag devuelve false si el flag nunca se escribió.
	GetFlag(ctx context.Context, name string) (bool, error)
	SetFlag(ctx context.Context, name string, value bool) error
}
