package indicator

import (
	"math"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const (
	TypeSMACrossover = "sma_crossover"
	TypeEMACrossover = "ema_crossover"
)

// crossover compares a fast and a slow moving window. The score takes its
// sign from which average is on top and its size from their relative
// separation, squashed with tanh.
type crossover struct {
	typ         string
	exponential bool
	fast        int
	slow        int
	scale       float64
}

func newCrossover(typ string, exponential bool) func(p *params) (Indicator, error) {
	return func(p *params) (Indicator, error) {
		fast, err := p.int("fast", 12)
		if err != nil {
			return nil, err
		}
		slow, err := p.int("slow", 26)
		if err != nil {
			return nil, err
		}
		c := &crossover{
			typ:         typ,
			exponential: exponential,
			fast:        fast,
			slow:        slow,
			scale:       p.float("scale", 0.01),
		}
		if c.fast <= 0 {
			return nil, p.errorf("fast", "must be positive, got %d", c.fast)
		}
		if c.fast >= c.slow {
			return nil, p.errorf("fast", "fast window %d must be smaller than slow window %d", c.fast, c.slow)
		}
		if c.scale <= 0 || math.IsNaN(c.scale) {
			return nil, p.errorf("scale", "must be positive, got %v", c.scale)
		}
		return c, nil
	}
}

func (c *crossover) Type() string  { return c.typ }
func (c *crossover) Lookback() int { return c.slow }

func (c *crossover) Compute(series domain.PriceSeries) (domain.IndicatorResult, error) {
	if series.Len() < c.Lookback() {
		return domain.IndicatorResult{}, unavailable(c.typ, c.Lookback(), series.Len())
	}
	closes := series.Closes()

	var fast, slow float64
	if c.exponential {
		last := len(closes) - 1
		fast = ema(closes, c.fast)[last]
		slow = ema(closes, c.slow)[last]
	} else {
		fast = smaLast(closes, c.fast)
		slow = smaLast(closes, c.slow)
	}

	raw := map[string]float64{"fast": fast, "slow": slow}
	if slow <= 0 || math.IsNaN(slow) || math.IsNaN(fast) {
		raw["degenerate"] = 1
		return domain.IndicatorResult{Type: c.typ, Score: 0, Raw: raw}, nil
	}

	separation := (fast - slow) / slow
	raw["separation"] = separation
	return domain.IndicatorResult{
		Type:  c.typ,
		Score: clip(math.Tanh(separation / c.scale)),
		Raw:   raw,
	}, nil
}
