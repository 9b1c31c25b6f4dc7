package signals

import (
	"fmt"
	"math"
)

// VolatilityLevel buckets the return standard deviation.
type VolatilityLevel string

const (
	VolatilityHigh   VolatilityLevel = "High"
	VolatilityMedium VolatilityLevel = "Medium"
	VolatilityLow    VolatilityLevel = "Low"
)

const (
	highVolatilityPct   = 5.0
	mediumVolatilityPct = 2.0
)

// Volatility is the population standard deviation of simple returns, in percent.
type Volatility struct {
	Percent float64         `json:"percent"`
	Level   VolatilityLevel `json:"level"`
}

// Label formats the volatility as "Level (x.xx%)".
func (v Volatility) Label() string {
	return fmt.Sprintf("%s (%.2f%%)", v.Level, v.Percent)
}

// Returns computes simple returns. A zero previous price contributes a zero
// return.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return returns
}

// MeasureVolatility computes the volatility of a price window. Windows of
// one price or fewer have no returns and measure 0%.
func MeasureVolatility(prices []float64) Volatility {
	returns := Returns(prices)
	pct := 0.0
	if len(returns) > 0 {
		var mean float64
		for _, r := range returns {
			mean += r
		}
		mean /= float64(len(returns))

		var variance float64
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(returns))
		pct = math.Sqrt(variance) * 100
	}

	v := Volatility{Percent: pct, Level: VolatilityLow}
	switch {
	case pct > highVolatilityPct:
		v.Level = VolatilityHigh
	case pct > mediumVolatilityPct:
		v.Level = VolatilityMedium
	}
	return v
}
