package exchange

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// mapCandles convierte las velas a domain.Candle en orden ascendente, descarta
// velas no cerradas y valores no finitos, y conserva solo las últimas
// lookback.
func mapCandles(raw []candleRaw, lookback int) []domain.Candle {
	candles := make([]domain.Candle, 0, len(raw))
	for _, r := range raw {
		if r.Closed != nil && !*r.Closed {
			continue
		}
		if !finite(r.Open, r.High, r.Low, r.Close, r.Volume) {
			continue
		}
		candles = append(candles, domain.Candle{
			OpenTime: time.Unix(r.T, 0).UTC(),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		})
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	candles = dedupe(candles)

	if lookback > 0 && len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}
	return candles
}

// dedupe conserva la última vela de cada open time.
func dedupe(candles []domain.Candle) []domain.Candle {
	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].OpenTime.Equal(c.OpenTime) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func mapExecution(r orderResponse) domain.Execution {
	return domain.Execution{
		OrderID:     r.OrderID,
		Status:      r.Status,
		FilledSize:  r.FilledSize,
		FillPrice:   r.FillPrice,
		RealizedPnL: r.RealizedPnL,
	}
}

func mapPortfolio(r portfolioResponse) domain.Portfolio {
	return domain.Portfolio{
		Asset:        r.Asset,
		QuoteBalance: r.QuoteBalance,
		BaseHoldings: r.BaseHoldings,
		Price:        r.Price,
	}
}
