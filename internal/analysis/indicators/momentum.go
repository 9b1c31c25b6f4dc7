package indicators

import (
	"fmt"
)

// RSI calculates the Relative Strength Index using a plain windowed average
// of gains and losses at every step (no Wilder smoothing).
//
// The reading derived from changes[i-period..i-1] is stored at price index
// i+1, so the output keeps the input length and the first defined index is
// period+1.
func RSI(prices []float64, period int) Line {
	n := len(prices)
	result := NewLine(n)
	if period <= 0 || n < 2 {
		return result
	}

	changes := make([]float64, n-1)
	for i := 1; i < n; i++ {
		changes[i-1] = prices[i] - prices[i-1]
	}

	for i := period; i < len(changes); i++ {
		var gains, losses float64
		for _, c := range changes[i-period : i] {
			if c > 0 {
				gains += c
			} else if c < 0 {
				losses += c
			}
		}
		avgGain := gains / float64(period)
		avgLoss := -losses / float64(period)

		if avgLoss == 0 {
			result[i+1] = Defined(100)
			continue
		}
		rs := avgGain / avgLoss
		result[i+1] = Defined(100 - (100 / (1 + rs)))
	}

	return result
}

// RSIIndicator calculates the Relative Strength Index.
type RSIIndicator struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSIIndicator {
	return &RSIIndicator{period: period}
}

func (r *RSIIndicator) Kind() Kind { return KindRSI }

func (r *RSIIndicator) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSIIndicator) Period() int {
	return r.period
}

func (r *RSIIndicator) Calculate(prices []float64) (Line, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return RSI(prices, r.period), nil
}
