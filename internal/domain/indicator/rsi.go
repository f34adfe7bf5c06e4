package indicator

import "github.com/alejandrodnm/signalbot/internal/domain"

const TypeRSI = "rsi"

// rsi is the momentum oscillator. The RSI scale 0..100 is rescaled to [-1,1]
// with a soft neutral zone around 50 and saturation at oversold/overbought.
type rsi struct {
	period     int
	oversold   float64
	overbought float64
	band       float64
}

func newRSI(p *params) (Indicator, error) {
	period, err := p.int("period", 14)
	if err != nil {
		return nil, err
	}
	ind := &rsi{
		period:     period,
		oversold:   p.float("oversold", 30),
		overbought: p.float("overbought", 70),
		band:       p.float("neutral_band", 5),
	}
	if ind.period < 2 {
		return nil, p.errorf("period", "must be at least 2, got %d", ind.period)
	}
	if ind.band < 0 || ind.band >= 50 {
		return nil, p.errorf("neutral_band", "must be within [0,50), got %v", ind.band)
	}
	if ind.oversold <= 0 || ind.oversold >= 50-ind.band {
		return nil, p.errorf("oversold", "must be within (0,%v), got %v", 50-ind.band, ind.oversold)
	}
	if ind.overbought <= 50+ind.band || ind.overbought >= 100 {
		return nil, p.errorf("overbought", "must be within (%v,100), got %v", 50+ind.band, ind.overbought)
	}
	return ind, nil
}

func (r *rsi) Type() string  { return TypeRSI }
func (r *rsi) Lookback() int { return r.period + 1 }

func (r *rsi) Compute(series domain.PriceSeries) (domain.IndicatorResult, error) {
	if series.Len() < r.Lookback() {
		return domain.IndicatorResult{}, unavailable(TypeRSI, r.Lookback(), series.Len())
	}
	value := wilderRSI(series.Closes(), r.period)
	return domain.IndicatorResult{
		Type:  TypeRSI,
		Score: r.score(value),
		Raw:   map[string]float64{"rsi": value},
	}, nil
}

// score is piecewise linear and continuous: +1 at or below oversold, 0 in
// the neutral band, -1 at or above overbought.
func (r *rsi) score(value float64) float64 {
	lo, hi := 50-r.band, 50+r.band
	switch {
	case value <= r.oversold:
		return 1
	case value < lo:
		return (lo - value) / (lo - r.oversold)
	case value <= hi:
		return 0
	case value < r.overbought:
		return -(value - hi) / (r.overbought - hi)
	default:
		return -1
	}
}
