package signals

// Recommendation is the action suggested by a trend signal.
type Recommendation string

const (
	RecommendHoldOrSell     Recommendation = "HOLD_OR_SELL"
	RecommendConsiderBuying Recommendation = "CONSIDER_BUYING"
	RecommendHold           Recommendation = "HOLD"
	RecommendNeutral        Recommendation = "NEUTRAL"
)

// Label returns the message shown next to the recommendation.
func (r Recommendation) Label() string {
	switch r {
	case RecommendHoldOrSell:
		return "HOLD or SELL - Wait for better entry point"
	case RecommendConsiderBuying:
		return "CONSIDER BUYING - Potential upside opportunity"
	case RecommendHold:
		return "HOLD - Maintain current positions"
	default:
		return "NEUTRAL - Monitor for clearer signals"
	}
}

// recommendations maps every signal to an action. Bearish and overbought
// signals take precedence over bullish and oversold ones, which take
// precedence over plain uptrends.
var recommendations = map[Signal]Recommendation{
	SignalRSIOverbought:    RecommendHoldOrSell,
	SignalBandOverbought:   RecommendHoldOrSell,
	SignalBearishCrossover: RecommendHoldOrSell,
	SignalBearishMomentum:  RecommendHoldOrSell,

	SignalRSIOversold:      RecommendConsiderBuying,
	SignalBandOversold:     RecommendConsiderBuying,
	SignalBullishCrossover: RecommendConsiderBuying,
	SignalBullishMomentum:  RecommendConsiderBuying,

	SignalStrongUptrend: RecommendHold,
	SignalUptrend:       RecommendHold,

	SignalDowntrend:        RecommendNeutral,
	SignalNeutral:          RecommendNeutral,
	SignalNoTrend:          RecommendNeutral,
	SignalRSINeutral:       RecommendNeutral,
	SignalBandNormal:       RecommendNeutral,
	SignalInsufficientData: RecommendNeutral,
}

// Recommend returns the recommendation for s. Unmapped signals are neutral.
func Recommend(s Signal) Recommendation {
	if r, ok := recommendations[s]; ok {
		return r
	}
	return RecommendNeutral
}
