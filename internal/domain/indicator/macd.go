package indicator

import (
	"math"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const TypeMACD = "macd"

// macd blends a zero-line component (sign and size of the MACD line) with a
// momentum component (change of the histogram over the last bar). Both are
// normalized by price so the score is comparable across assets.
type macd struct {
	fast   int
	slow   int
	signal int
	scale  float64
	blend  float64
}

func newMACD(p *params) (Indicator, error) {
	fast, err := p.int("fast", 12)
	if err != nil {
		return nil, err
	}
	slow, err := p.int("slow", 26)
	if err != nil {
		return nil, err
	}
	signal, err := p.int("signal", 9)
	if err != nil {
		return nil, err
	}
	m := &macd{
		fast:   fast,
		slow:   slow,
		signal: signal,
		scale:  p.float("scale", 0.005),
		blend:  p.float("blend", 0.5),
	}
	if m.fast <= 0 {
		return nil, p.errorf("fast", "must be positive, got %d", m.fast)
	}
	if m.fast >= m.slow {
		return nil, p.errorf("fast", "fast window %d must be smaller than slow window %d", m.fast, m.slow)
	}
	if m.signal <= 0 {
		return nil, p.errorf("signal", "must be positive, got %d", m.signal)
	}
	if m.scale <= 0 || math.IsNaN(m.scale) {
		return nil, p.errorf("scale", "must be positive, got %v", m.scale)
	}
	if m.blend < 0 || m.blend > 1 || math.IsNaN(m.blend) {
		return nil, p.errorf("blend", "must be within [0,1], got %v", m.blend)
	}
	return m, nil
}

func (m *macd) Type() string { return TypeMACD }

// Lookback covers the slow EMA seed, the signal EMA seed and one extra bar
// for the previous histogram value.
func (m *macd) Lookback() int { return m.slow + m.signal }

func (m *macd) Compute(series domain.PriceSeries) (domain.IndicatorResult, error) {
	if series.Len() < m.Lookback() {
		return domain.IndicatorResult{}, unavailable(TypeMACD, m.Lookback(), series.Len())
	}
	closes := series.Closes()
	fast := ema(closes, m.fast)
	slow := ema(closes, m.slow)

	first := m.slow - 1
	line := make([]float64, len(closes)-first)
	for i := range line {
		line[i] = fast[first+i] - slow[first+i]
	}
	signal := ema(line, m.signal)

	last := len(line) - 1
	hist := line[last] - signal[last]
	histPrev := line[last-1] - signal[last-1]
	price := closes[len(closes)-1]

	raw := map[string]float64{
		"macd":      line[last],
		"signal":    signal[last],
		"histogram": hist,
	}
	if price <= 0 || math.IsNaN(hist) || math.IsNaN(histPrev) {
		raw["degenerate"] = 1
		return domain.IndicatorResult{Type: TypeMACD, Score: 0, Raw: raw}, nil
	}

	norm := price * m.scale
	zeroLine := math.Tanh(line[last] / norm)
	momentum := math.Tanh((hist - histPrev) / norm)
	raw["zero_line"] = zeroLine
	raw["momentum"] = momentum

	return domain.IndicatorResult{
		Type:  TypeMACD,
		Score: clip(m.blend*zeroLine + (1-m.blend)*momentum),
		Raw:   raw,
	}, nil
}
