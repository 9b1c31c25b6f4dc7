// Package signals derives qualitative market signals from price series and
// indicator outputs: trend labels, volatility buckets, support/resistance and
// a buy/hold/sell recommendation.
package signals

import (
	"fmt"

	"cryptolens/internal/analysis/indicators"
)

// Signal is the structured outcome of a trend classifier.
type Signal int

const (
	SignalInsufficientData Signal = iota
	SignalStrongUptrend
	SignalUptrend
	SignalDowntrend
	SignalNeutral
	SignalNoTrend
	SignalRSIOverbought
	SignalRSIOversold
	SignalRSINeutral
	SignalBullishCrossover
	SignalBearishCrossover
	SignalBullishMomentum
	SignalBearishMomentum
	SignalBandOverbought
	SignalBandOversold
	SignalBandNormal
)

var signalNames = map[Signal]string{
	SignalInsufficientData: "INSUFFICIENT_DATA",
	SignalStrongUptrend:    "STRONG_UPTREND",
	SignalUptrend:          "UPTREND",
	SignalDowntrend:        "DOWNTREND",
	SignalNeutral:          "NEUTRAL",
	SignalNoTrend:          "NO_TREND",
	SignalRSIOverbought:    "RSI_OVERBOUGHT",
	SignalRSIOversold:      "RSI_OVERSOLD",
	SignalRSINeutral:       "RSI_NEUTRAL",
	SignalBullishCrossover: "BULLISH_CROSSOVER",
	SignalBearishCrossover: "BEARISH_CROSSOVER",
	SignalBullishMomentum:  "BULLISH_MOMENTUM",
	SignalBearishMomentum:  "BEARISH_MOMENTUM",
	SignalBandOverbought:   "BAND_OVERBOUGHT",
	SignalBandOversold:     "BAND_OVERSOLD",
	SignalBandNormal:       "BAND_NORMAL",
}

// String returns the stable identifier of the signal.
func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// MarshalText encodes the signal by its identifier.
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a signal identifier.
func (s *Signal) UnmarshalText(text []byte) error {
	for sig, name := range signalNames {
		if name == string(text) {
			*s = sig
			return nil
		}
	}
	return fmt.Errorf("unknown signal %q", text)
}

// Trend is a classified signal with its human-readable message.
type Trend struct {
	Signal Signal `json:"signal"`
	Label  string `json:"label"`
}

// Recommendation returns the recommendation mapped from the trend's signal.
func (t Trend) Recommendation() Recommendation {
	return Recommend(t.Signal)
}

const (
	// strongBand is the relative distance above a moving average that marks a strong uptrend.
	strongBand = 1.02
	// weakBand is the relative distance below a moving average that marks a downtrend.
	weakBand = 0.98

	rsiOverbought = 70.0
	rsiOversold   = 30.0
)

// ClassifyTrend compares the last price to the last defined moving-average value.
func ClassifyTrend(prices []float64, ma indicators.Line) Trend {
	last, ok := ma.Last()
	if !ok || len(prices) == 0 {
		return Trend{Signal: SignalNoTrend, Label: "Neutral"}
	}
	price := prices[len(prices)-1]

	switch {
	case price > last*strongBand:
		return Trend{Signal: SignalStrongUptrend, Label: "Strong Uptrend - Price is above moving average"}
	case price > last:
		return Trend{Signal: SignalUptrend, Label: "Uptrend - Price slightly above moving average"}
	case price < last*weakBand:
		return Trend{Signal: SignalDowntrend, Label: "Downtrend - Price significantly below moving average"}
	default:
		return Trend{Signal: SignalNeutral, Label: "Neutral - Price near moving average"}
	}
}

// ClassifyRSI buckets the last defined RSI reading.
func ClassifyRSI(rsi indicators.Line) Trend {
	last, ok := rsi.Last()
	if !ok {
		return Trend{Signal: SignalInsufficientData, Label: "Insufficient data"}
	}

	switch {
	case last > rsiOverbought:
		return Trend{Signal: SignalRSIOverbought, Label: fmt.Sprintf("Overbought - RSI at %.2f. Potential reversal coming", last)}
	case last < rsiOversold:
		return Trend{Signal: SignalRSIOversold, Label: fmt.Sprintf("Oversold - RSI at %.2f. Potential buying opportunity", last)}
	default:
		return Trend{Signal: SignalRSINeutral, Label: fmt.Sprintf("Neutral - RSI at %.2f. Normal trading range", last)}
	}
}

// ClassifyMACD looks for a zero-line crossover between the last two defined
// MACD readings.
func ClassifyMACD(macd indicators.Line) Trend {
	last := macd.LastN(2)
	if len(last) < 2 {
		return Trend{Signal: SignalInsufficientData, Label: "Insufficient data"}
	}
	previous, current := last[0], last[1]

	switch {
	case current > 0 && previous <= 0:
		return Trend{Signal: SignalBullishCrossover, Label: "Bullish crossover - Potential buy signal"}
	case current < 0 && previous >= 0:
		return Trend{Signal: SignalBearishCrossover, Label: "Bearish crossover - Potential sell signal"}
	case current > 0:
		return Trend{Signal: SignalBullishMomentum, Label: "Bullish momentum continuing"}
	default:
		return Trend{Signal: SignalBearishMomentum, Label: "Bearish momentum continuing"}
	}
}

// ClassifyBollinger places the last price relative to the last defined
// bands. Touching a band counts as crossing it.
func ClassifyBollinger(prices []float64, bands indicators.Bands) Trend {
	upper, okU := bands.Upper.Last()
	lower, okL := bands.Lower.Last()
	if !okU || !okL || len(prices) == 0 {
		return Trend{Signal: SignalInsufficientData, Label: "Insufficient data"}
	}
	price := prices[len(prices)-1]

	switch {
	case price >= upper:
		return Trend{Signal: SignalBandOverbought, Label: "Price at upper band - Overbought, potential reversal"}
	case price <= lower:
		return Trend{Signal: SignalBandOversold, Label: "Price at lower band - Oversold, potential bounce"}
	default:
		return Trend{Signal: SignalBandNormal, Label: "Price within bands - Normal trading range"}
	}
}
