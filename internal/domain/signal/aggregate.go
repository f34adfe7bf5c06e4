// Package signal combines indicator scores into one decision and classifies
// its conviction.
package signal

import (
	"errors"
	"fmt"
	"math"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/domain/indicator"
)

// Contribution is one indicator's share of the combined score.
type Contribution struct {
	Type     string                 `json:"type"`
	Weight   float64                `json:"weight"`
	Result   domain.IndicatorResult `json:"result"`
	Weighted float64                `json:"weighted"`
}

// Aggregate is the combined outcome of one evaluation cycle.
type Aggregate struct {
	Score         float64        `json:"score"`
	Action        domain.Action  `json:"action"`
	Contributions []Contribution `json:"contributions"`
	UsedWeight    float64        `json:"used_weight"`
	Unavailable   []string       `json:"unavailable,omitempty"`
}

// Combine scores every enabled indicator of the bot against the series and
// returns the weighted sum clipped to [-1,1].
//
// Unavailable indicators are skipped and their weight is not redistributed:
// missing data weakens the signal. Bots with Renormalize set divide by the
// weight actually used instead. Indicators are visited in sorted type order so
// the floating-point sum is reproducible.
//
// When no indicator produced a score the error is domain.ErrInsufficientData.
func Combine(bot domain.Bot, series domain.PriceSeries) (Aggregate, error) {
	var agg Aggregate
	sum := 0.0

	for _, name := range bot.EnabledTypes() {
		cfg := bot.Signals[name]
		ind, err := indicator.Create(name, cfg.Params)
		if err != nil {
			return Aggregate{}, fmt.Errorf("signal.Combine: %w", err)
		}
		res, err := ind.Compute(series)
		if errors.Is(err, indicator.ErrUnavailable) {
			agg.Unavailable = append(agg.Unavailable, name)
			continue
		}
		if err != nil {
			return Aggregate{}, fmt.Errorf("signal.Combine: %s: %w", name, err)
		}

		weighted := cfg.Weight * res.Score
		sum += weighted
		agg.UsedWeight += cfg.Weight
		agg.Contributions = append(agg.Contributions, Contribution{
			Type:     name,
			Weight:   cfg.Weight,
			Result:   res,
			Weighted: weighted,
		})
	}

	if len(agg.Contributions) == 0 {
		agg.Action = domain.ActionHold
		return agg, domain.ErrInsufficientData
	}

	if bot.Renormalize && agg.UsedWeight > 0 {
		sum /= agg.UsedWeight
	}
	agg.Score = clip(sum)
	agg.Action = Decide(agg.Score, bot.BuyThreshold, bot.SellThreshold)
	return agg, nil
}

// Decide maps a combined score to an action. BUY when score >= buy,
// SELL when score <= sell, otherwise HOLD.
func Decide(score, buy, sell float64) domain.Action {
	switch {
	case score >= buy:
		return domain.ActionBuy
	case score <= sell:
		return domain.ActionSell
	default:
		return domain.ActionHold
	}
}

func clip(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(-1, math.Min(1, x))
}
