package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Executor envía órdenes al exchange (real o simulado).
type Executor interface {
	// Execute coloca una orden de mercado por size unidades de moneda quote.
	// Los fallos son *domain.ExecutionError con Kind rejected, exchange_error
	// o timeout. No reintenta: un reintento podría duplicar la orden.
	Execute(ctx context.Context, asset string, side domain.Action, size float64) (domain.Execution, error)
}

// PortfolioProvider devuelve balances y precio de referencia de un activo.
type PortfolioProvider interface {
	Portfolio(ctx context.Context, asset string) (domain.Portfolio, error)
}
