package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const (
	ordersPath    = "/v1/orders"
	portfolioPath = "/v1/portfolio"
)

// Execute implementa ports.Executor con una orden de mercado por importe en
// moneda quote. Cada orden lleva un client_order_id único para poder
// reconciliarla si la respuesta se pierde.
func (c *Client) Execute(ctx context.Context, asset string, side domain.Action, size float64) (domain.Execution, error) {
	if !side.Tradable() {
		return domain.Execution{}, &domain.ExecutionError{Kind: domain.ExecRejected, Message: "side " + side.String() + " is not tradable"}
	}
	req := orderRequest{
		ClientOrderID: uuid.New().String(),
		Asset:         asset,
		Side:          side.String(),
		Type:          "market",
		QuoteSize:     size,
	}

	var resp orderResponse
	if err := c.post(ctx, c.base+ordersPath, req, &resp); err != nil {
		execErr := classifyOrderError(ctx, err)
		slog.Warn("exchange: order failed",
			"asset", asset,
			"side", side,
			"client_order_id", req.ClientOrderID,
			"kind", execErr.Kind,
			"err", err,
		)
		return domain.Execution{}, fmt.Errorf("exchange.Execute: %w", execErr)
	}

	slog.Info("exchange: order placed",
		"asset", asset,
		"side", side,
		"size", size,
		"order_id", resp.OrderID,
		"status", resp.Status,
	)
	return mapExecution(resp), nil
}

// classifyOrderError: 4xx es un rechazo definitivo del exchange; timeouts y
// cualquier otra cosa dejan la orden en estado desconocido.
func classifyOrderError(ctx context.Context, err error) *domain.ExecutionError {
	if se, ok := asStatus(err); ok {
		if se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests && se.Code != http.StatusRequestTimeout {
			return &domain.ExecutionError{Kind: domain.ExecRejected, Message: se.Error()}
		}
		return &domain.ExecutionError{Kind: domain.ExecExchangeError, Message: se.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return &domain.ExecutionError{Kind: domain.ExecTimeout, Message: err.Error()}
	}
	return &domain.ExecutionError{Kind: domain.ExecExchangeError, Message: err.Error()}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Portfolio implementa ports.PortfolioProvider.
func (c *Client) Portfolio(ctx context.Context, asset string) (domain.Portfolio, error) {
	var resp portfolioResponse
	if err := c.get(ctx, c.base+portfolioPath+"?asset="+url.QueryEscape(asset), &resp); err != nil {
		return domain.Portfolio{}, fmt.Errorf("exchange.Portfolio: %w", err)
	}
	p := mapPortfolio(resp)
	if p.Asset == "" {
		p.Asset = asset
	}
	return p, nil
}
