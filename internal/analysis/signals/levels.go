package signals

import (
	"github.com/shopspring/decimal"
)

// Levels holds the support and resistance of a price window.
type Levels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// SupportResistance returns the min and max of prices. ok is false for an
// empty window.
func SupportResistance(prices []float64) (Levels, bool) {
	if len(prices) == 0 {
		return Levels{}, false
	}
	lv := Levels{Support: prices[0], Resistance: prices[0]}
	for _, p := range prices[1:] {
		if p < lv.Support {
			lv.Support = p
		}
		if p > lv.Resistance {
			lv.Resistance = p
		}
	}
	return lv, true
}

// Rounded returns the levels rounded to two decimals, half away from zero.
func (l Levels) Rounded() Levels {
	return Levels{
		Support:    round2(l.Support),
		Resistance: round2(l.Resistance),
	}
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
