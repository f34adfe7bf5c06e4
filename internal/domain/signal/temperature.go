package signal

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Profile holds the three ascending |score| thresholds of a temperature scale.
type Profile struct {
	Name      string  `yaml:"name" json:"name"`
	FrozenMax float64 `yaml:"frozen_max" json:"frozen_max"`
	CoolMax   float64 `yaml:"cool_max" json:"cool_max"`
	WarmMax   float64 `yaml:"warm_max" json:"warm_max"`
}

// Built-in profiles: sensitive for iterating on small size, conservative for
// real capital.
var (
	Sensitive    = Profile{Name: "sensitive", FrozenMax: 0.02, CoolMax: 0.05, WarmMax: 0.10}
	Conservative = Profile{Name: "conservative", FrozenMax: 0.05, CoolMax: 0.15, WarmMax: 0.30}
)

// Validate checks frozen_max < cool_max < warm_max <= 1.
func (p Profile) Validate() error {
	if !(0 < p.FrozenMax && p.FrozenMax < p.CoolMax && p.CoolMax < p.WarmMax && p.WarmMax <= 1) {
		return domain.NewConfigError("temperature."+p.Name,
			"thresholds must be strictly ascending within (0,1]: %v < %v < %v", p.FrozenMax, p.CoolMax, p.WarmMax)
	}
	return nil
}

// Profiles is an immutable set of named profiles passed to each call, so
// bots can use different scales concurrently.
type Profiles map[string]Profile

// DefaultProfiles returns the built-in profile set.
func DefaultProfiles() Profiles {
	return Profiles{Sensitive.Name: Sensitive, Conservative.Name: Conservative}
}

// Lookup returns the named profile.
func (ps Profiles) Lookup(name string) (Profile, error) {
	p, ok := ps[name]
	if !ok {
		return Profile{}, domain.NewConfigError("profile", "unknown temperature profile %q", name)
	}
	return p, nil
}

// Reading is the classification of one score.
type Reading struct {
	Temperature domain.Temperature `json:"temperature"`
	// Approaching is the action whose threshold is nearer.
	Approaching domain.Action `json:"approaching"`
	// Distance is the signed gap to that threshold: positive while the
	// threshold has not been reached, zero or negative once it has.
	Distance float64 `json:"distance"`
}

func (r Reading) String() string {
	return fmt.Sprintf("%s (%.3f to %s)", r.Temperature, r.Distance, r.Approaching)
}

// Classify maps |score| onto the profile and computes the UI hint towards the
// nearer of the buy and sell thresholds. The hint is display-only.
func Classify(score float64, p Profile, buy, sell float64) Reading {
	abs := math.Abs(score)
	var t domain.Temperature
	switch {
	case abs < p.FrozenMax:
		t = domain.Frozen
	case abs < p.CoolMax:
		t = domain.Cool
	case abs < p.WarmMax:
		t = domain.Warm
	default:
		t = domain.Hot
	}

	toBuy := buy - score
	toSell := score - sell
	r := Reading{Temperature: t, Approaching: domain.ActionBuy, Distance: toBuy}
	if math.Abs(toSell) < math.Abs(toBuy) {
		r.Approaching = domain.ActionSell
		r.Distance = toSell
	}
	return r
}
