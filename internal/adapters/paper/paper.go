// Package paper simulates an exchange account in memory. Orders fill
// immediately at the last close of the market data feed.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

const unitsEpsilon = 1e-12

type position struct {
	units   float64
	avgCost float64 // quote per unit, fees included
}

// Exchange implements ports.Executor and ports.PortfolioProvider against a
// virtual balance. State lives in memory only.
type Exchange struct {
	prices      ports.MarketData
	granularity domain.Granularity
	feeRate     float64

	mu        sync.Mutex
	quote     float64
	positions map[string]*position
}

// New creates a paper account with startBalance in quote currency. feeRate
// is charged on every fill (0.001 = 10 bps).
func New(prices ports.MarketData, g domain.Granularity, startBalance, feeRate float64) *Exchange {
	return &Exchange{
		prices:      prices,
		granularity: g,
		feeRate:     feeRate,
		quote:       startBalance,
		positions:   make(map[string]*position),
	}
}

func (e *Exchange) lastPrice(ctx context.Context, asset string) (float64, error) {
	series, err := e.prices.PriceSeries(ctx, asset, e.granularity, 1)
	if err != nil {
		return 0, err
	}
	p := series.LastClose()
	if p <= 0 {
		return 0, fmt.Errorf("no price for %s", asset)
	}
	return p, nil
}

// Execute fills size quote units of asset at the last price.
func (e *Exchange) Execute(ctx context.Context, asset string, side domain.Action, size float64) (domain.Execution, error) {
	price, err := e.lastPrice(ctx, asset)
	if err != nil {
		return domain.Execution{}, fmt.Errorf("paper.Execute: %w",
			&domain.ExecutionError{Kind: domain.ExecRejected, Message: "price unavailable: " + err.Error()})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.positions[asset]
	if pos == nil {
		pos = &position{}
		e.positions[asset] = pos
	}
	fee := size * e.feeRate
	exec := domain.Execution{OrderID: uuid.New().String(), Status: "filled", FillPrice: price}

	switch side {
	case domain.ActionBuy:
		if size > e.quote {
			return domain.Execution{}, &domain.ExecutionError{Kind: domain.ExecRejected,
				Message: fmt.Sprintf("insufficient balance %.2f < %.2f", e.quote, size)}
		}
		units := (size - fee) / price
		pos.avgCost = (pos.units*pos.avgCost + size) / (pos.units + units)
		pos.units += units
		e.quote -= size
		exec.FilledSize = units

	case domain.ActionSell:
		units := size / price
		if units > pos.units+unitsEpsilon {
			return domain.Execution{}, &domain.ExecutionError{Kind: domain.ExecRejected,
				Message: fmt.Sprintf("insufficient holdings %.8f < %.8f", pos.units, units)}
		}
		if units > pos.units {
			units = pos.units
		}
		proceeds := units*price - fee
		exec.RealizedPnL = proceeds - units*pos.avgCost
		pos.units -= units
		if pos.units <= unitsEpsilon {
			pos.units, pos.avgCost = 0, 0
		}
		e.quote += proceeds
		exec.FilledSize = units

	default:
		return domain.Execution{}, &domain.ExecutionError{Kind: domain.ExecRejected, Message: "side " + side.String() + " is not tradable"}
	}

	slog.Info("paper: order FILLED",
		"asset", asset,
		"side", side,
		"size", size,
		"price", price,
		"units", exec.FilledSize,
		"realized_pnl", exec.RealizedPnL,
		"balance", e.quote,
	)
	return exec, nil
}

// Portfolio returns the virtual balances valued at the last price.
func (e *Exchange) Portfolio(ctx context.Context, asset string) (domain.Portfolio, error) {
	price, err := e.lastPrice(ctx, asset)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("paper.Portfolio: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := domain.Portfolio{Asset: asset, QuoteBalance: e.quote, Price: price}
	if pos := e.positions[asset]; pos != nil {
		p.BaseHoldings = pos.units
	}
	return p, nil
}
