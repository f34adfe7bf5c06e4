package indicator

import (
	"math"
	"sort"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// params reads type-specific parameters with defaults and remembers which
// keys were consumed, so unknown keys can be reported.
type params struct {
	typ  string
	raw  map[string]float64
	used map[string]bool
}

func newParams(typ string, raw map[string]float64) *params {
	return &params{typ: typ, raw: raw, used: make(map[string]bool)}
}

func (p *params) float(name string, def float64) float64 {
	p.used[name] = true
	if v, ok := p.raw[name]; ok {
		return v
	}
	return def
}

// int reads an integer parameter. Fractional values are rejected by check.
func (p *params) int(name string, def int) (int, error) {
	v := p.float(name, float64(def))
	if math.IsNaN(v) || v != math.Trunc(v) {
		return 0, p.errorf(name, "must be an integer, got %v", v)
	}
	return int(v), nil
}

func (p *params) errorf(name, format string, args ...any) error {
	return domain.NewConfigError("signal_config."+p.typ+"."+name, format, args...)
}

// unknown reports the first parameter that no reader consumed.
func (p *params) unknown() error {
	keys := make([]string, 0, len(p.raw))
	for k := range p.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !p.used[k] {
			return p.errorf(k, "unknown parameter")
		}
	}
	return nil
}
