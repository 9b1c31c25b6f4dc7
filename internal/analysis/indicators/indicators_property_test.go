package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: every indicator output is aligned with its input, leading
// positions are undefined until enough history exists, and the numeric
// bounds of each indicator hold.

// priceSliceGen generates strictly positive price series of the given length range.
func priceSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(n interface{}) gopter.Gen {
		return gen.SliceOfN(n.(int), gen.Float64Range(1.0, 100000.0))
	}, reflect.TypeOf([]float64{}))
}

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return gopter.NewProperties(parameters)
}

func approxEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-9*scale
}

func TestProperty_SMAAlignment(t *testing.T) {
	properties := newProperties()

	properties.Property("SMA has len-P+1 trailing defined values and P-1 undefined", prop.ForAll(
		func(prices []float64, period int) bool {
			sma := SMA(prices, period)
			if len(sma) != len(prices) {
				return false
			}
			if len(prices) < period {
				return sma.Defined() == 0
			}
			if sma.Defined() != len(prices)-period+1 {
				return false
			}
			for i := 0; i < period-1; i++ {
				if sma[i].Valid {
					return false
				}
			}
			return true
		},
		priceSliceGen(0, 120),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestProperty_EMASeedIsMean(t *testing.T) {
	properties := newProperties()

	properties.Property("EMA[P-1] equals the mean of the first P prices", prop.ForAll(
		func(prices []float64, period int) bool {
			ema := EMA(prices, period)
			if len(ema) != len(prices) {
				return false
			}
			seed, ok := ema.At(period - 1)
			if !ok {
				return false
			}
			return seed == mean(prices[:period]) && ema.FirstDefined() == period-1
		},
		priceSliceGen(60, 120),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	properties := newProperties()

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(prices []float64) bool {
			rsi := RSI(prices, DefaultRSIPeriod)
			if len(rsi) != len(prices) {
				return false
			}
			for _, v := range rsi {
				if v.Valid && (v.Value < 0 || v.Value > 100) {
					return false
				}
			}
			return true
		},
		priceSliceGen(0, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_MACDDefinedIffBothEMAs(t *testing.T) {
	properties := newProperties()

	properties.Property("MACD defined exactly where EMA12 and EMA26 are, equal to their difference", prop.ForAll(
		func(prices []float64) bool {
			macd := MACD(prices)
			ema12 := EMA(prices, 12)
			ema26 := EMA(prices, 26)
			for i := range prices {
				f, okF := ema12.At(i)
				s, okS := ema26.At(i)
				m, okM := macd.At(i)
				if okM != (okF && okS) {
					return false
				}
				if okM && m != f-s {
					return false
				}
			}
			return true
		},
		priceSliceGen(0, 80),
	))

	properties.TestingRun(t)
}

func TestProperty_BollingerMiddleIsSMA(t *testing.T) {
	properties := newProperties()

	properties.Property("Bollinger middle equals SMA and the band width is 4 stdDev", prop.ForAll(
		func(prices []float64) bool {
			bands := Bollinger(prices, 20, 2)
			sma := SMA(prices, 20)
			for i := range prices {
				mid, okM := bands.Middle.At(i)
				s, okS := sma.At(i)
				up, okU := bands.Upper.At(i)
				lo, okL := bands.Lower.At(i)
				if okM != okS || okU != okS || okL != okS {
					return false
				}
				if !okS {
					continue
				}
				if mid != s {
					return false
				}
				sd := populationStdDev(prices[i-19:i+1], s)
				if !approxEqual(up-lo, 4*sd) {
					return false
				}
			}
			return true
		},
		priceSliceGen(0, 80),
	))

	properties.TestingRun(t)
}

func TestProperty_Idempotent(t *testing.T) {
	properties := newProperties()

	properties.Property("indicators are pure", prop.ForAll(
		func(prices []float64) bool {
			input := make([]float64, len(prices))
			copy(input, prices)
			if !reflect.DeepEqual(SMA(prices, 5), SMA(prices, 5)) {
				return false
			}
			if !reflect.DeepEqual(EMA(prices, 5), EMA(prices, 5)) {
				return false
			}
			if !reflect.DeepEqual(RSI(prices, 14), RSI(prices, 14)) {
				return false
			}
			if !reflect.DeepEqual(MACD(prices), MACD(prices)) {
				return false
			}
			if !reflect.DeepEqual(Bollinger(prices, 20, 2), Bollinger(prices, 20, 2)) {
				return false
			}
			for i := range input {
				if input[i] != prices[i] {
					return false
				}
			}
			return true
		},
		priceSliceGen(0, 60),
	))

	properties.TestingRun(t)
}
