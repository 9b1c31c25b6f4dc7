package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"cryptolens/internal/analysis/indicators"
	"cryptolens/internal/analysis/series"
	"cryptolens/internal/analysis/signals"
	apperrors "cryptolens/internal/errors"
	"cryptolens/internal/models"
)

func makeSeries(prices ...float64) models.Series {
	s := make(models.Series, len(prices))
	for i, p := range prices {
		s[i] = models.PricePoint{
			Date:  models.Label(fmt.Sprintf("2024-01-%02d", i+1)),
			Close: models.NewField(p),
		}
	}
	return s
}

func newTestAnalyzer(params Params) *Analyzer {
	return NewAnalyzer(params, zerolog.Nop())
}

func TestAnalyzeEmptyWindow(t *testing.T) {
	a := newTestAnalyzer(DefaultParams())
	for _, kind := range indicators.Kinds() {
		_, err := a.Analyze(context.Background(), Request{CryptoID: "bitcoin", Indicator: kind, Period: series.Period7d})
		if !errors.Is(err, apperrors.ErrEmptySeries) {
			t.Errorf("%s: err = %v, want ErrEmptySeries", kind, err)
		}
		var de *apperrors.DataError
		if !errors.As(err, &de) || de.CryptoID != "bitcoin" {
			t.Errorf("%s: expected DataError for bitcoin, got %v", kind, err)
		}
	}
	if _, err := a.AnalyzeAll(context.Background(), Request{}); !errors.Is(err, apperrors.ErrEmptySeries) {
		t.Errorf("AnalyzeAll err = %v", err)
	}
}

func TestAnalyzeUnknownIndicator(t *testing.T) {
	a := newTestAnalyzer(DefaultParams())
	_, err := a.Analyze(context.Background(), Request{Series: makeSeries(1, 2, 3), Indicator: "stochastic"})
	if !errors.Is(err, apperrors.ErrUnknownIndicator) {
		t.Errorf("err = %v, want ErrUnknownIndicator", err)
	}
}

func TestAnalyzeShortHistory(t *testing.T) {
	a := newTestAnalyzer(DefaultParams())
	s := makeSeries(100, 101, 102, 103, 104, 105, 106, 107, 108, 109)

	res, err := a.Analyze(context.Background(), Request{Series: s, Indicator: indicators.KindRSI, Period: series.Period30d})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Line.Defined() != 0 {
		t.Errorf("RSI defined count = %d, want 0", res.Line.Defined())
	}
	if res.Trend.Signal != signals.SignalInsufficientData {
		t.Errorf("trend = %v", res.Trend.Signal)
	}
	if res.Recommendation != signals.RecommendNeutral {
		t.Errorf("recommendation = %s", res.Recommendation)
	}
	if res.Support != 100 || res.Resistance != 109 {
		t.Errorf("levels = %v/%v", res.Support, res.Resistance)
	}
	if math.IsNaN(res.Volatility.Percent) {
		t.Error("volatility is NaN")
	}
}

func TestAnalyzeWindowsSeries(t *testing.T) {
	a := newTestAnalyzer(DefaultParams())
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = float64(i + 1)
	}
	res, err := a.Analyze(context.Background(), Request{Series: makeSeries(prices...), Indicator: indicators.KindSMA, Period: series.Period7d})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Prices) != 7 || res.Prices[0] != 34 || len(res.Dates) != 7 || len(res.Line) != 7 {
		t.Errorf("window = %v dates=%d line=%d", res.Prices, len(res.Dates), len(res.Line))
	}
	if res.Dates[0] != "2024-01-34" || res.Dates[6] != "2024-01-40" {
		t.Errorf("dates = %v", res.Dates)
	}
	// SMA(20) never fills a 7-point window.
	if res.Trend.Signal != signals.SignalNoTrend || res.Trend.Label != "Neutral" {
		t.Errorf("trend = %+v", res.Trend)
	}
}

func TestAnalyzeTrendUsesMovingAverage(t *testing.T) {
	params := DefaultParams()
	params.SMAPeriod = 3
	params.EMAPeriod = 3
	a := newTestAnalyzer(params)
	s := makeSeries(100, 100, 100, 100, 110)

	for _, kind := range []indicators.Kind{indicators.KindSMA, indicators.KindEMA} {
		res, err := a.Analyze(context.Background(), Request{Series: s, Indicator: kind, Period: series.Period30d})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if res.Trend.Signal != signals.SignalStrongUptrend {
			t.Errorf("%s: trend = %v", kind, res.Trend.Signal)
		}
		if res.Recommendation != signals.RecommendHold {
			t.Errorf("%s: recommendation = %s", kind, res.Recommendation)
		}
	}
}

func TestAnalyzeBollingerUpperBoundary(t *testing.T) {
	params := DefaultParams()
	params.BollingerPeriod = 2
	params.BollingerStdDev = 1
	a := newTestAnalyzer(params)

	// Mean 2, standard deviation 1: the upper band equals the last price.
	res, err := a.Analyze(context.Background(), Request{Series: makeSeries(1, 3), Indicator: indicators.KindBollinger, Period: series.Period7d})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Bands == nil {
		t.Fatal("expected bands")
	}
	if upper, _ := res.Bands.Upper.Last(); upper != 3 {
		t.Fatalf("upper = %v, want 3", upper)
	}
	if res.Trend.Signal != signals.SignalBandOverbought {
		t.Errorf("trend = %v, want band overbought", res.Trend.Signal)
	}
	if res.Recommendation != signals.RecommendHoldOrSell {
		t.Errorf("recommendation = %s", res.Recommendation)
	}
	if res.Line != nil {
		t.Error("bollinger result should not carry a line")
	}
}

func TestAnalyzeAll(t *testing.T) {
	params := DefaultParams()
	params.SMAPeriod = 3
	params.EMAPeriod = 3
	params.RSIPeriod = 3
	params.MACDFast = 2
	params.MACDSlow = 4
	params.BollingerPeriod = 3
	a := newTestAnalyzer(params)

	s := makeSeries(10, 11, 12, 11, 13, 14, 13, 15, 16, 15)
	results, err := a.AnalyzeAll(context.Background(), Request{CryptoID: "eth", Series: s, Period: series.Period30d})
	if err != nil {
		t.Fatalf("AnalyzeAll() error = %v", err)
	}
	if len(results) != len(indicators.Kinds()) {
		t.Fatalf("got %d results", len(results))
	}
	for _, kind := range indicators.Kinds() {
		res, ok := results[kind]
		if !ok {
			t.Errorf("missing %s", kind)
			continue
		}
		if res.Indicator != kind || res.CryptoID != "eth" {
			t.Errorf("%s: result = %+v", kind, res)
		}
		if res.Support != 10 || res.Resistance != 16 {
			t.Errorf("%s: levels = %v/%v", kind, res.Support, res.Resistance)
		}
	}
	if results[indicators.KindBollinger].Bands == nil {
		t.Error("bollinger bands missing")
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	a := newTestAnalyzer(DefaultParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, Request{Series: makeSeries(1, 2, 3), Indicator: indicators.KindSMA})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestResultJSON(t *testing.T) {
	a := newTestAnalyzer(DefaultParams())
	res, err := a.Analyze(context.Background(), Request{Series: makeSeries(1, 2, 3), Indicator: indicators.KindSMA, Period: series.Period7d})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	line, ok := decoded["line"].([]interface{})
	if !ok || len(line) != 3 || line[0] != nil {
		t.Errorf("line = %v", decoded["line"])
	}
	if decoded["recommendation"] != "NEUTRAL" {
		t.Errorf("recommendation = %v", decoded["recommendation"])
	}
	if _, ok := decoded["bands"]; ok {
		t.Error("bands should be omitted")
	}

	res, err = a.Analyze(context.Background(), Request{Series: makeSeries(1.23456, 9.87654), Indicator: indicators.KindSMA, Period: series.Period7d})
	if err != nil {
		t.Fatal(err)
	}
	data, _ = json.Marshal(res)
	decoded = nil
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["support"] != 1.23 || decoded["resistance"] != 9.88 {
		t.Errorf("levels = %v / %v, want 1.23 / 9.88", decoded["support"], decoded["resistance"])
	}
}

func TestProperty_AnalyzeNeverLeaksNaN(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	a := newTestAnalyzer(DefaultParams())

	properties.Property("every kind yields finite levels and volatility", prop.ForAll(
		func(prices []float64) bool {
			s := makeSeries(prices...)
			for _, kind := range indicators.Kinds() {
				res, err := a.Analyze(context.Background(), Request{Series: s, Indicator: kind, Period: series.Period90d})
				if err != nil {
					return false
				}
				for _, v := range []float64{res.Support, res.Resistance, res.Volatility.Percent} {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 60).FlatMap(func(n interface{}) gopter.Gen {
			return gen.SliceOfN(n.(int), gen.Float64Range(0.01, 1e5))
		}, reflect.TypeOf([]float64{})),
	))

	properties.TestingRun(t)
}
