package indicators

import (
	"fmt"
)

// SMA returns the trailing simple moving average. Positions before
// period-1 are undefined.
func SMA(prices []float64, period int) Line {
	result := NewLine(len(prices))
	if period <= 0 {
		return result
	}
	for i := period - 1; i < len(prices); i++ {
		result[i] = Defined(mean(prices[i-period+1 : i+1]))
	}
	return result
}

// EMA returns the exponential moving average seeded with the simple average
// of the first period prices.
func EMA(prices []float64, period int) Line {
	result := NewLine(len(prices))
	if period <= 0 || len(prices) < period {
		return result
	}

	multiplier := 2.0 / float64(period+1)

	// First EMA is SMA
	prev := mean(prices[:period])
	result[period-1] = Defined(prev)

	for i := period; i < len(prices); i++ {
		prev = (prices[i]-prev)*multiplier + prev
		result[i] = Defined(prev)
	}
	return result
}

// MACDLine returns fast EMA minus slow EMA wherever both are defined.
func MACDLine(prices []float64, fast, slow int) Line {
	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	result := NewLine(len(prices))
	for i := range prices {
		f, okF := fastEMA.At(i)
		s, okS := slowEMA.At(i)
		if okF && okS {
			result[i] = Defined(f - s)
		}
	}
	return result
}

// MACD returns the 12/26 MACD line. Signal and histogram are not computed.
func MACD(prices []float64) Line {
	return MACDLine(prices, DefaultMACDFast, DefaultMACDSlow)
}

// SMAIndicator calculates Simple Moving Average.
type SMAIndicator struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMAIndicator {
	return &SMAIndicator{period: period}
}

func (s *SMAIndicator) Kind() Kind { return KindSMA }

func (s *SMAIndicator) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMAIndicator) Period() int {
	return s.period
}

func (s *SMAIndicator) Calculate(prices []float64) (Line, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return SMA(prices, s.period), nil
}

// EMAIndicator calculates Exponential Moving Average.
type EMAIndicator struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMAIndicator {
	return &EMAIndicator{period: period}
}

func (e *EMAIndicator) Kind() Kind { return KindEMA }

func (e *EMAIndicator) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMAIndicator) Period() int {
	return e.period
}

func (e *EMAIndicator) Calculate(prices []float64) (Line, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return EMA(prices, e.period), nil
}

// MACDIndicator calculates the MACD line.
type MACDIndicator struct {
	fastPeriod int
	slowPeriod int
}

// NewMACD creates a new MACD indicator.
func NewMACD(fast, slow int) *MACDIndicator {
	return &MACDIndicator{
		fastPeriod: fast,
		slowPeriod: slow,
	}
}

func (m *MACDIndicator) Kind() Kind { return KindMACD }

func (m *MACDIndicator) Name() string {
	return fmt.Sprintf("MACD_%d_%d", m.fastPeriod, m.slowPeriod)
}

func (m *MACDIndicator) Period() int {
	return m.slowPeriod
}

func (m *MACDIndicator) Calculate(prices []float64) (Line, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	return MACDLine(prices, m.fastPeriod, m.slowPeriod), nil
}
