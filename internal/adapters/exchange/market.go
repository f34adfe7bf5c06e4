package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const candlesPath = "/v1/candles"

// PriceSeries implementa ports.MarketDataProvider.
// 404 → domain.ErrUnknownAsset; red, 5xx o 429 persistentes →
// domain.ErrMarketDataUnavailable.
func (c *Client) PriceSeries(ctx context.Context, asset string, g domain.Granularity, lookback int) (domain.PriceSeries, error) {
	q := url.Values{}
	q.Set("asset", asset)
	q.Set("granularity", string(g))
	q.Set("limit", strconv.Itoa(lookback))
	u := c.base + candlesPath + "?" + q.Encode()

	var resp candlesResponse
	if err := c.get(ctx, u, &resp); err != nil {
		if se, ok := asStatus(err); ok && se.Code == http.StatusNotFound {
			return domain.PriceSeries{}, fmt.Errorf("exchange.PriceSeries: %s: %w", asset, domain.ErrUnknownAsset)
		}
		if errors.Is(err, context.Canceled) {
			return domain.PriceSeries{}, fmt.Errorf("exchange.PriceSeries: %w", err)
		}
		return domain.PriceSeries{}, fmt.Errorf("exchange.PriceSeries: %s: %w: %v", asset, domain.ErrMarketDataUnavailable, err)
	}

	series := domain.PriceSeries{
		Asset:       asset,
		Granularity: g,
		Candles:     mapCandles(resp.Candles, lookback),
	}
	slog.Debug("exchange: candles fetched",
		"asset", asset,
		"granularity", g,
		"requested", lookback,
		"received", series.Len(),
	)
	return series, nil
}
