package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// MarketDataProvider obtiene series OHLCV desde la fuente upstream.
type MarketDataProvider interface {
	// PriceSeries devuelve como máximo lookback velas cerradas, de la más
	// antigua a la más reciente.
	// Errores: domain.ErrMarketDataUnavailable si la fuente no responde,
	// domain.ErrUnknownAsset si el activo no existe.
	PriceSeries(ctx context.Context, asset string, g domain.Granularity, lookback int) (domain.PriceSeries, error)
}

// MarketData es la vista cacheada que usa el evaluador. Tiene la misma firma
// que el provider para poder sustituir uno por otro en tests.
type MarketData interface {
	PriceSeries(ctx context.Context, asset string, g domain.Granularity, lookback int) (domain.PriceSeries, error)
}

// SeriesStore es una caché compartida opcional (L2) entre procesos.
type SeriesStore interface {
	// GetSeries devuelve ok=false si la clave no existe o expiró.
	GetSeries(ctx context.Context, key string) (domain.PriceSeries, bool, error)
	SetSeries(ctx context.Context, key string, s domain.PriceSeries) error
}
