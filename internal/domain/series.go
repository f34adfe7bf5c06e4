package domain

import (
	"fmt"
	"time"
)

// Granularity is the candle width of a price series.
type Granularity string

const (
	Granularity1m  Granularity = "1m"
	Granularity5m  Granularity = "5m"
	Granularity15m Granularity = "15m"
	Granularity1h  Granularity = "1h"
	Granularity4h  Granularity = "4h"
	Granularity1d  Granularity = "1d"
)

// Duration returns the wall-clock width of one candle.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Granularity1m:
		return time.Minute
	case Granularity5m:
		return 5 * time.Minute
	case Granularity15m:
		return 15 * time.Minute
	case Granularity1h:
		return time.Hour
	case Granularity4h:
		return 4 * time.Hour
	case Granularity1d:
		return 24 * time.Hour
	}
	return 0
}

// ParseGranularity validates a granularity string.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if g.Duration() == 0 {
		return "", fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

// Candle is one OHLCV sample.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// PriceSeries holds time-ascending candles for one asset. It is treated as
// immutable once handed to the decision engine.
type PriceSeries struct {
	Asset       string      `json:"asset"`
	Granularity Granularity `json:"granularity"`
	Candles     []Candle    `json:"candles"`
}

// Len returns the number of candles.
func (s PriceSeries) Len() int {
	return len(s.Candles)
}

// Closes returns a fresh slice of close prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Last returns the most recent candle, or false when the series is empty.
func (s PriceSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// LastClose returns the close of the most recent candle, 0 when empty.
func (s PriceSeries) LastClose() float64 {
	c, ok := s.Last()
	if !ok {
		return 0
	}
	return c.Close
}
