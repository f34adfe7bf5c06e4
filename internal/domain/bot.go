package domain

import (
	"math"
	"sort"
	"time"
)

// Default trade-control values.
const (
	DefaultBuyThreshold  = 0.05
	DefaultSellThreshold = -0.05
	DefaultProfile       = "conservative"
	maxWeightTotal       = 1.0
	weightEpsilon        = 1e-9
)

// IndicatorConfig is the declarative configuration of one indicator.
type IndicatorConfig struct {
	Type    string             `json:"type"`
	Enabled bool               `json:"enabled"`
	Weight  float64            `json:"weight"`
	Params  map[string]float64 `json:"params,omitempty"`
}

// IndicatorResult is one indicator's fresh output for one cycle.
type IndicatorResult struct {
	Type  string             `json:"type"`
	Score float64            `json:"score"`
	Raw   map[string]float64 `json:"raw,omitempty"`
}

// Bot is the long-lived per-asset configuration driving one decision stream.
type Bot struct {
	ID          string
	Asset       string
	Granularity Granularity
	Lookback    int

	Signals map[string]IndicatorConfig

	BuyThreshold  float64 // score >= BuyThreshold → BUY
	SellThreshold float64 // score <= SellThreshold → SELL
	Renormalize   bool    // rescale by used weight when indicators are missing

	ConfirmationMinutes float64
	CooldownMinutes     float64
	PositionSize        float64
	MinPositionSize     float64
	MaxPositionSize     float64
	MinTemperature      Temperature
	DailyLossCap        float64
	Profile             string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConfirmationWindow returns the required hold duration of an action.
func (b Bot) ConfirmationWindow() time.Duration {
	return minutes(b.ConfirmationMinutes)
}

// Cooldown returns the minimum gap between two trades.
func (b Bot) Cooldown() time.Duration {
	return minutes(b.CooldownMinutes)
}

// EnabledTypes returns enabled indicator types in sorted order.
func (b Bot) EnabledTypes() []string {
	out := make([]string, 0, len(b.Signals))
	for name, cfg := range b.Signals {
		if cfg.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// EnabledWeight returns the sum of enabled indicator weights.
func (b Bot) EnabledWeight() float64 {
	total := 0.0
	for _, name := range b.EnabledTypes() {
		total += b.Signals[name].Weight
	}
	return total
}

// Validate checks the cross-field invariants of a bot that do not depend on
// indicator internals. Indicator parameters are checked by the factory.
func (b Bot) Validate() error {
	if b.ID == "" {
		return NewConfigError("id", "must not be empty")
	}
	if b.Asset == "" {
		return NewConfigError("asset", "must not be empty")
	}
	if b.Granularity.Duration() == 0 {
		return NewConfigError("granularity", "unknown value %q", b.Granularity)
	}
	if b.Lookback <= 0 {
		return NewConfigError("lookback", "must be positive")
	}
	if len(b.EnabledTypes()) == 0 {
		return NewConfigError("signal_config", "at least one indicator must be enabled")
	}
	for name, cfg := range b.Signals {
		if cfg.Type != "" && cfg.Type != name {
			return NewConfigError("signal_config."+name, "type %q does not match key", cfg.Type)
		}
		if math.IsNaN(cfg.Weight) || cfg.Weight < 0 || cfg.Weight > 1 {
			return NewConfigError("signal_config."+name+".weight", "must be within [0,1], got %v", cfg.Weight)
		}
	}
	if w := b.EnabledWeight(); w > maxWeightTotal+weightEpsilon {
		return NewConfigError("signal_config", "total enabled weight %.4f exceeds 1.0", w)
	}
	if b.BuyThreshold <= 0 || b.BuyThreshold > 1 {
		return NewConfigError("buy_threshold", "must be within (0,1], got %v", b.BuyThreshold)
	}
	if b.SellThreshold >= 0 || b.SellThreshold < -1 {
		return NewConfigError("sell_threshold", "must be within [-1,0), got %v", b.SellThreshold)
	}
	if b.ConfirmationMinutes < 0 {
		return NewConfigError("confirmation_minutes", "must not be negative")
	}
	if b.CooldownMinutes < 0 {
		return NewConfigError("cooldown_minutes", "must not be negative")
	}
	if b.MinPositionSize < 0 || b.MaxPositionSize <= 0 || b.MinPositionSize > b.MaxPositionSize {
		return NewConfigError("position_size_bounds", "invalid bounds [%v, %v]", b.MinPositionSize, b.MaxPositionSize)
	}
	if b.PositionSize <= 0 {
		return NewConfigError("position_size", "must be positive")
	}
	if b.DailyLossCap < 0 {
		return NewConfigError("daily_loss_cap", "must not be negative")
	}
	return nil
}

// BotSnapshot is the last persisted evaluation outcome of a bot.
type BotSnapshot struct {
	BotID        string
	Score        float64
	Action       Action
	Temperature  Temperature
	NoSignal     bool
	Confirmation ConfirmationState
	EvaluatedAt  time.Time
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// BotStatus is one row of the operator status view.
type BotStatus struct {
	Bot      Bot
	Snapshot *BotSnapshot
	Counters TradingCounters
}
