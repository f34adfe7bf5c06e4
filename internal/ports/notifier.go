package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Notifier presenta el estado de los bots al usuario.
type Notifier interface {
	// NotifyStatus muestra una fila por bot.
	// En la implementación de consola, imprime una tabla formateada.
	NotifyStatus(ctx context.Context, halted bool, statuses []domain.BotStatus) error
}
