package indicator

import (
	"sort"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

type constructor func(p *params) (Indicator, error)

// registry maps declarative type names to constructors. Adding an indicator
// type touches this map only.
var registry = map[string]constructor{
	TypeRSI:          newRSI,
	TypeSMACrossover: newCrossover(TypeSMACrossover, false),
	TypeEMACrossover: newCrossover(TypeEMACrossover, true),
	TypeMACD:         newMACD,
}

// Create builds an indicator from its declarative configuration. Unknown
// types and invalid parameters fail with *domain.ConfigurationError.
func Create(typeName string, raw map[string]float64) (Indicator, error) {
	ctor, ok := registry[typeName]
	if !ok {
		return nil, domain.NewConfigError("signal_config."+typeName, "unknown indicator type")
	}
	p := newParams(typeName, raw)
	ind, err := ctor(p)
	if err != nil {
		return nil, err
	}
	if err := p.unknown(); err != nil {
		return nil, err
	}
	return ind, nil
}

// Types returns the registered indicator type names, sorted.
func Types() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateBot runs the bot's own invariants, builds every configured
// indicator, enabled or not, and checks that the lookback covers the slowest
// enabled one.
func ValidateBot(b domain.Bot) error {
	if err := b.Validate(); err != nil {
		return err
	}
	names := make([]string, 0, len(b.Signals))
	for name := range b.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := Create(name, b.Signals[name].Params); err != nil {
			return err
		}
	}
	if need := Lookback(b); b.Lookback < need {
		return domain.NewConfigError("lookback", "%d candles cannot feed the slowest enabled indicator, which needs %d", b.Lookback, need)
	}
	return nil
}

// Lookback returns the longest lookback among the bot's enabled indicators.
// Invalid configurations report 0.
func Lookback(b domain.Bot) int {
	longest := 0
	for _, name := range b.EnabledTypes() {
		ind, err := Create(name, b.Signals[name].Params)
		if err != nil {
			return 0
		}
		if ind.Lookback() > longest {
			longest = ind.Lookback()
		}
	}
	return longest
}
