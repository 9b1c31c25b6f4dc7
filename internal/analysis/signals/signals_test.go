package signals

import (
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"cryptolens/internal/analysis/indicators"
)

func line(values ...interface{}) indicators.Line {
	l := make(indicators.Line, len(values))
	for i, v := range values {
		if v != nil {
			l[i] = indicators.Defined(v.(float64))
		}
	}
	return l
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		ma    indicators.Line
		want  Signal
	}{
		{"strong uptrend", 103, line(nil, 100.0), SignalStrongUptrend},
		{"uptrend", 101, line(100.0), SignalUptrend},
		{"exactly 2% above is not strong", 102, line(100.0), SignalUptrend},
		{"downtrend", 97, line(100.0, nil), SignalDowntrend},
		{"neutral below", 99, line(100.0), SignalNeutral},
		{"neutral equal", 100, line(100.0), SignalNeutral},
		{"no history", 100, line(nil, nil), SignalNoTrend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTrend([]float64{1, tt.price}, tt.ma)
			if got.Signal != tt.want {
				t.Errorf("ClassifyTrend() = %v (%q), want %v", got.Signal, got.Label, tt.want)
			}
		})
	}

	if got := ClassifyTrend(nil, line(1.0)); got.Label != "Neutral" {
		t.Errorf("empty prices label = %q", got.Label)
	}
}

func TestClassifyRSI(t *testing.T) {
	tests := []struct {
		rsi   indicators.Line
		want  Signal
		label string
	}{
		{line(nil, 75.456), SignalRSIOverbought, "Overbought - RSI at 75.46. Potential reversal coming"},
		{line(10.0, nil), SignalRSIOversold, "Oversold - RSI at 10.00. Potential buying opportunity"},
		{line(70.0), SignalRSINeutral, "Neutral - RSI at 70.00. Normal trading range"},
		{line(30.0), SignalRSINeutral, "Neutral - RSI at 30.00. Normal trading range"},
		{line(nil), SignalInsufficientData, "Insufficient data"},
	}
	for _, tt := range tests {
		got := ClassifyRSI(tt.rsi)
		if got.Signal != tt.want || got.Label != tt.label {
			t.Errorf("ClassifyRSI() = %+v, want %v %q", got, tt.want, tt.label)
		}
	}
}

func TestClassifyMACD(t *testing.T) {
	// EMA12 [-0.5, 0.3] minus EMA26 [-0.2, 0.1] gives [-0.3, 0.2].
	ema12 := []float64{-0.5, 0.3}
	ema26 := []float64{-0.2, 0.1}
	macd := line(nil, ema12[0]-ema26[0], ema12[1]-ema26[1])
	if got := ClassifyMACD(macd); got.Signal != SignalBullishCrossover {
		t.Errorf("scenario crossover = %v, want bullish crossover", got.Signal)
	}

	tests := []struct {
		macd indicators.Line
		want Signal
	}{
		{line(0.0, 0.1), SignalBullishCrossover},
		{line(0.0, -0.1), SignalBearishCrossover},
		{line(0.2, -0.1), SignalBearishCrossover},
		{line(0.2, 0.3), SignalBullishMomentum},
		{line(-0.2, -0.3), SignalBearishMomentum},
		{line(-0.2, 0.0), SignalBearishMomentum},
		{line(nil, 0.4), SignalInsufficientData},
		{line(), SignalInsufficientData},
	}
	for _, tt := range tests {
		if got := ClassifyMACD(tt.macd); got.Signal != tt.want {
			t.Errorf("ClassifyMACD(%+v) = %v, want %v", tt.macd, got.Signal, tt.want)
		}
	}
}

func TestClassifyBollinger(t *testing.T) {
	bands := indicators.Bands{
		Upper: line(nil, 110.0),
		Lower: line(nil, 90.0),
	}
	tests := []struct {
		price float64
		want  Signal
	}{
		{110, SignalBandOverbought},
		{120, SignalBandOverbought},
		{90, SignalBandOversold},
		{80, SignalBandOversold},
		{100, SignalBandNormal},
	}
	for _, tt := range tests {
		if got := ClassifyBollinger([]float64{tt.price}, bands); got.Signal != tt.want {
			t.Errorf("ClassifyBollinger(%v) = %v, want %v", tt.price, got.Signal, tt.want)
		}
	}

	missing := indicators.Bands{Upper: line(nil), Lower: line(nil)}
	if got := ClassifyBollinger([]float64{1}, missing); got.Signal != SignalInsufficientData {
		t.Errorf("missing bands = %v", got.Signal)
	}
}

// textRecommendation is the substring policy the lookup table replaces.
func textRecommendation(label string) Recommendation {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "overbought") || strings.Contains(lower, "bearish"):
		return RecommendHoldOrSell
	case strings.Contains(lower, "oversold") || strings.Contains(lower, "bullish"):
		return RecommendConsiderBuying
	case strings.Contains(lower, "uptrend") || strings.Contains(lower, "strong"):
		return RecommendHold
	default:
		return RecommendNeutral
	}
}

func TestRecommendMatchesLabelPolicy(t *testing.T) {
	var trends []Trend
	for _, p := range []float64{110, 101, 90, 100} {
		trends = append(trends, ClassifyTrend([]float64{p}, line(100.0)))
	}
	trends = append(trends, ClassifyTrend([]float64{1}, line(nil)))
	for _, r := range []float64{80, 20, 50} {
		trends = append(trends, ClassifyRSI(line(r)))
	}
	trends = append(trends, ClassifyRSI(line(nil)))
	for _, pair := range [][2]float64{{-1, 1}, {1, -1}, {1, 2}, {-1, -2}} {
		trends = append(trends, ClassifyMACD(line(pair[0], pair[1])))
	}
	bands := indicators.Bands{Upper: line(110.0), Lower: line(90.0)}
	for _, p := range []float64{120, 80, 100} {
		trends = append(trends, ClassifyBollinger([]float64{p}, bands))
	}

	if len(trends) != len(signalNames) {
		t.Fatalf("covered %d signals, want %d", len(trends), len(signalNames))
	}
	for _, tr := range trends {
		if got, want := tr.Recommendation(), textRecommendation(tr.Label); got != want {
			t.Errorf("%v %q: Recommend = %s, label policy = %s", tr.Signal, tr.Label, got, want)
		}
	}
}

func TestRecommendationLabels(t *testing.T) {
	tests := map[Recommendation]string{
		RecommendHoldOrSell:     "HOLD or SELL - Wait for better entry point",
		RecommendConsiderBuying: "CONSIDER BUYING - Potential upside opportunity",
		RecommendHold:           "HOLD - Maintain current positions",
		RecommendNeutral:        "NEUTRAL - Monitor for clearer signals",
	}
	for r, want := range tests {
		if r.Label() != want {
			t.Errorf("%s.Label() = %q", r, r.Label())
		}
	}
	if Recommend(Signal(999)) != RecommendNeutral {
		t.Error("unknown signal should be neutral")
	}
}

func TestMeasureVolatility(t *testing.T) {
	v := MeasureVolatility([]float64{100, 105, 95, 100})
	if math.Abs(v.Percent-6.9095) > 1e-3 {
		t.Errorf("Percent = %v, want ~6.91", v.Percent)
	}
	if v.Level != VolatilityHigh || v.Label() != "High (6.91%)" {
		t.Errorf("volatility = %+v label %q", v, v.Label())
	}

	tests := []struct {
		prices []float64
		level  VolatilityLevel
	}{
		{[]float64{100, 103, 100, 103}, VolatilityMedium},
		{[]float64{100, 100.5, 100, 100.5}, VolatilityLow},
		{[]float64{100}, VolatilityLow},
		{nil, VolatilityLow},
		{[]float64{0, 10, 0}, VolatilityHigh},
	}
	for _, tt := range tests {
		got := MeasureVolatility(tt.prices)
		if got.Level != tt.level || math.IsNaN(got.Percent) || math.IsInf(got.Percent, 0) {
			t.Errorf("MeasureVolatility(%v) = %+v, want %s", tt.prices, got, tt.level)
		}
	}
	if got := MeasureVolatility([]float64{42}); got.Percent != 0 || got.Label() != "Low (0.00%)" {
		t.Errorf("single price = %+v", got)
	}
}

func TestSupportResistance(t *testing.T) {
	lv, ok := SupportResistance([]float64{3.14159, 1.005, 9.999})
	if !ok {
		t.Fatal("expected levels")
	}
	if lv.Support != 1.005 || lv.Resistance != 9.999 {
		t.Errorf("levels = %+v", lv)
	}
	r := lv.Rounded()
	if r.Support != 1.01 || r.Resistance != 10 {
		t.Errorf("rounded = %+v", r)
	}
	if _, ok := SupportResistance(nil); ok {
		t.Error("empty window has no levels")
	}
}

func TestProperty_LevelsBoundPrices(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("support <= every price <= resistance, volatility >= 0", prop.ForAll(
		func(prices []float64) bool {
			if len(prices) == 0 {
				return true
			}
			lv, ok := SupportResistance(prices)
			if !ok {
				return false
			}
			for _, p := range prices {
				if p < lv.Support || p > lv.Resistance {
					return false
				}
			}
			return MeasureVolatility(prices).Percent >= 0
		},
		gen.SliceOf(gen.Float64Range(0.01, 1e6)),
	))

	properties.TestingRun(t)
}
