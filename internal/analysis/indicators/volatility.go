package indicators

import (
	"fmt"
)

// Band keys of the Bollinger multi-value output.
const (
	BandUpper  = "upper"
	BandMiddle = "middle"
	BandLower  = "lower"
)

// Bands holds three aligned Bollinger lines.
type Bands struct {
	Upper  Line `json:"upper"`
	Middle Line `json:"middle"`
	Lower  Line `json:"lower"`
}

// Map returns the bands keyed by BandUpper, BandMiddle and BandLower.
func (b Bands) Map() map[string]Line {
	return map[string]Line{
		BandUpper:  b.Upper,
		BandMiddle: b.Middle,
		BandLower:  b.Lower,
	}
}

// BandsFromMap is the inverse of Bands.Map.
func BandsFromMap(m map[string]Line) Bands {
	return Bands{Upper: m[BandUpper], Middle: m[BandMiddle], Lower: m[BandLower]}
}

// Bollinger returns middle = SMA(period) and upper/lower at stdDevMul
// population standard deviations of the same window.
func Bollinger(prices []float64, period int, stdDevMul float64) Bands {
	n := len(prices)
	bands := Bands{
		Upper:  NewLine(n),
		Middle: SMA(prices, period),
		Lower:  NewLine(n),
	}

	for i := 0; i < n; i++ {
		mid, ok := bands.Middle.At(i)
		if !ok {
			continue
		}
		sd := populationStdDev(prices[i-period+1:i+1], mid)
		bands.Upper[i] = Defined(mid + stdDevMul*sd)
		bands.Lower[i] = Defined(mid - stdDevMul*sd)
	}

	return bands
}

// BollingerBands calculates Bollinger Bands.
type BollingerBands struct {
	period    int
	stdDevMul float64
}

// NewBollingerBands creates a new Bollinger Bands indicator.
func NewBollingerBands(period int, stdDevMul float64) *BollingerBands {
	return &BollingerBands{
		period:    period,
		stdDevMul: stdDevMul,
	}
}

func (b *BollingerBands) Kind() Kind { return KindBollinger }

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("BollingerBands_%d_%.1f", b.period, b.stdDevMul)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Calculate(prices []float64) (map[string]Line, error) {
	if b.period <= 0 || b.stdDevMul <= 0 {
		return nil, ErrInvalidPeriod
	}
	return Bollinger(prices, b.period, b.stdDevMul).Map(), nil
}
