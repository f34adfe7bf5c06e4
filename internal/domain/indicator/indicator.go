// Package indicator computes normalized directional scores from price series.
//
// Every indicator maps a series to a score in [-1,+1]: -1 is maximal sell
// conviction, +1 maximal buy conviction, 0 neutral. Scores are continuous so
// small price moves never flip the aggregate through a step. Indicators are
// pure: identical inputs always give identical results.
//
// Concrete indicator types are unexported. The registry (Create) is the only
// construction path, so declared and executed behaviour cannot drift apart.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// ErrUnavailable is returned when the series is shorter than the indicator's
// lookback. It is a value for the aggregator, not a failure.
var ErrUnavailable = errors.New("indicator unavailable")

// Indicator computes a score from a price series.
type Indicator interface {
	// Type returns the registry name of the indicator.
	Type() string
	// Lookback returns the minimum number of candles Compute needs.
	Lookback() int
	// Compute scores the series. Returns ErrUnavailable (wrapped) when the
	// series is too short.
	Compute(series domain.PriceSeries) (domain.IndicatorResult, error)
}

func unavailable(typ string, need, have int) error {
	return fmt.Errorf("%s: %w: need %d candles, have %d", typ, ErrUnavailable, need, have)
}

func clip(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(-1, math.Min(1, x))
}
