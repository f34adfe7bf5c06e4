package exchange

// DTOs raw de la API del exchange. Solo se usan dentro de este paquete.
// La conversión a domain se hace en mapping.go.

// candlesResponse es la respuesta de GET /v1/candles.
type candlesResponse struct {
	Asset       string      `json:"asset"`
	Granularity string      `json:"granularity"`
	Candles     []candleRaw `json:"candles"`
}

// candleRaw es una vela OHLCV. T es el open time en segundos Unix.
type candleRaw struct {
	T      int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Closed *bool   `json:"closed,omitempty"`
}

// orderRequest es el body de POST /v1/orders.
type orderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Asset         string  `json:"asset"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	QuoteSize     float64 `json:"quote_size"`
}

// orderResponse es la respuesta de POST /v1/orders.
type orderResponse struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	FilledSize  float64 `json:"filled_size"`
	FillPrice   float64 `json:"fill_price"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// portfolioResponse es la respuesta de GET /v1/portfolio.
type portfolioResponse struct {
	Asset        string  `json:"asset"`
	QuoteBalance float64 `json:"quote_balance"`
	BaseHoldings float64 `json:"base_holdings"`
	Price        float64 `json:"price"`
}
