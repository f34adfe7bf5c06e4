package domain

import "fmt"

// Action is the trading decision derived from a combined score.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction decodes a persisted action string.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionBuy, ActionSell, ActionHold:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Tradable reports whether the action implies an order.
func (a Action) Tradable() bool {
	return a == ActionBuy || a == ActionSell
}

func (a Action) String() string {
	return string(a)
}

// Temperature is a coarse conviction label derived from |score|.
// The zero value is FROZEN; values are ordered.
type Temperature int

const (
	Frozen Temperature = iota
	Cool
	Warm
	Hot
)

func (t Temperature) String() string {
	switch t {
	case Cool:
		return "COOL"
	case Warm:
		return "WARM"
	case Hot:
		return "HOT"
	default:
		return "FROZEN"
	}
}

// ParseTemperature decodes a temperature label.
func ParseTemperature(s string) (Temperature, error) {
	switch s {
	case "FROZEN", "frozen":
		return Frozen, nil
	case "COOL", "cool":
		return Cool, nil
	case "WARM", "warm":
		return Warm, nil
	case "HOT", "hot":
		return Hot, nil
	}
	return Frozen, fmt.Errorf("unknown temperature %q", s)
}

// Icon returns a short marker for console output.
func (t Temperature) Icon() string {
	switch t {
	case Cool:
		return "[C]"
	case Warm:
		return "[W]"
	case Hot:
		return "[H]"
	default:
		return "[F]"
	}
}

func (t Temperature) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Temperature) UnmarshalText(b []byte) error {
	v, err := ParseTemperature(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
