// Package analysis runs a technical-analysis pass over a price history: it
// windows the series, computes the requested indicator and classifies the
// result into trend, levels, volatility and a recommendation.
package analysis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cryptolens/internal/analysis/indicators"
	"cryptolens/internal/analysis/series"
	"cryptolens/internal/analysis/signals"
	apperrors "cryptolens/internal/errors"
	"cryptolens/internal/models"
)

// Params holds the indicator parameters used by an Analyzer.
type Params struct {
	SMAPeriod       int
	EMAPeriod       int
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	BollingerPeriod int
	BollingerStdDev float64
	Workers         int
}

// DefaultParams returns the dashboard's indicator parameters.
func DefaultParams() Params {
	return Params{
		SMAPeriod:       indicators.DefaultSMAPeriod,
		EMAPeriod:       indicators.DefaultEMAPeriod,
		RSIPeriod:       indicators.DefaultRSIPeriod,
		MACDFast:        indicators.DefaultMACDFast,
		MACDSlow:        indicators.DefaultMACDSlow,
		BollingerPeriod: indicators.DefaultBollingerPeriod,
		BollingerStdDev: indicators.DefaultBollingerStdDev,
		Workers:         4,
	}
}

// Request selects what to analyze.
type Request struct {
	CryptoID  string
	Series    models.Series
	Indicator indicators.Kind
	Period    series.Token
}

// Result is the outcome of one analysis pass. Trend, levels, volatility and
// recommendation are always populated; Line or Bands carries the indicator.
type Result struct {
	CryptoID       string                 `json:"crypto_id,omitempty"`
	Indicator      indicators.Kind        `json:"indicator"`
	Period         series.Token           `json:"period"`
	Dates          []string               `json:"dates"`
	Prices         []float64              `json:"prices"`
	Trend          signals.Trend          `json:"trend"`
	Support        float64                `json:"support"`
	Resistance     float64                `json:"resistance"`
	Volatility     signals.Volatility     `json:"volatility"`
	Recommendation signals.Recommendation `json:"recommendation"`
	Line           indicators.Line        `json:"line,omitempty"`
	Bands          *indicators.Bands      `json:"bands,omitempty"`
}

// Levels returns the support and resistance of the window.
func (r *Result) Levels() signals.Levels {
	return signals.Levels{Support: r.Support, Resistance: r.Resistance}
}

// Analyzer is the entry point used by the CLI and the HTTP server.
type Analyzer struct {
	engine *indicators.Engine
	params Params
	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer with one indicator of every kind
// registered using params.
func NewAnalyzer(params Params, logger zerolog.Logger) *Analyzer {
	e := indicators.NewEngine(params.Workers)
	e.RegisterIndicator(indicators.NewSMA(params.SMAPeriod))
	e.RegisterIndicator(indicators.NewEMA(params.EMAPeriod))
	e.RegisterIndicator(indicators.NewRSI(params.RSIPeriod))
	e.RegisterIndicator(indicators.NewMACD(params.MACDFast, params.MACDSlow))
	e.RegisterMultiIndicator(indicators.NewBollingerBands(params.BollingerPeriod, params.BollingerStdDev))

	return &Analyzer{
		engine: e,
		params: params,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// Params returns the analyzer's indicator parameters.
func (a *Analyzer) Params() Params {
	return a.params
}

// window cuts the request series and fails on an empty window.
func (a *Analyzer) window(req Request) (models.Series, error) {
	w := series.WindowByPeriod(req.Series, req.Period)
	if len(w) == 0 {
		return nil, apperrors.NewDataError("history", req.CryptoID, "no data points for period "+string(req.Period), apperrors.ErrEmptySeries)
	}
	return w, nil
}

// Analyze runs one indicator over the requested window. An empty window
// returns an error wrapping errors.ErrEmptySeries.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	kind, err := indicators.ParseKind(string(req.Indicator))
	if err != nil {
		return nil, err
	}

	w, err := a.window(req)
	if err != nil {
		a.logger.Warn().Str("crypto", req.CryptoID).Str("period", string(req.Period)).Msg("Insufficient data for selected period")
		return nil, err
	}
	prices := series.ExtractPrices(w)

	var (
		line  indicators.Line
		bands *indicators.Bands
	)
	if a.engine.IsMulti(kind) {
		m, err := a.engine.CalculateMulti(ctx, kind, prices)
		if err != nil {
			return nil, apperrors.Wrapf(err, "calculate %s", kind)
		}
		b := indicators.BandsFromMap(m)
		bands = &b
	} else {
		line, err = a.engine.Calculate(ctx, kind, prices)
		if err != nil {
			return nil, apperrors.Wrapf(err, "calculate %s", kind)
		}
	}

	result := buildResult(req, kind, w, prices, line, bands)
	a.logger.Debug().
		Str("crypto", req.CryptoID).
		Str("indicator", string(kind)).
		Str("period", string(req.Period)).
		Int("points", len(w)).
		Str("signal", result.Trend.Signal.String()).
		Dur("duration", time.Since(start)).
		Msg("Analysis completed")
	return result, nil
}

// AnalyzeAll runs every indicator over the same window in parallel. The
// request's Indicator is ignored.
func (a *Analyzer) AnalyzeAll(ctx context.Context, req Request) (map[indicators.Kind]*Result, error) {
	w, err := a.window(req)
	if err != nil {
		return nil, err
	}
	prices := series.ExtractPrices(w)

	calc, err := a.engine.CalculateAll(ctx, prices)
	if calc == nil {
		return nil, err
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("crypto", req.CryptoID).Msg("Some indicators failed")
	}

	results := make(map[indicators.Kind]*Result, len(calc.Single)+len(calc.Multi))
	for kind, line := range calc.Single {
		results[kind] = buildResult(req, kind, w, prices, line, nil)
	}
	for kind, m := range calc.Multi {
		b := indicators.BandsFromMap(m)
		results[kind] = buildResult(req, kind, w, prices, nil, &b)
	}
	return results, nil
}

func buildResult(req Request, kind indicators.Kind, w models.Series, prices []float64, line indicators.Line, bands *indicators.Bands) *Result {
	var trend signals.Trend
	switch kind {
	case indicators.KindRSI:
		trend = signals.ClassifyRSI(line)
	case indicators.KindMACD:
		trend = signals.ClassifyMACD(line)
	case indicators.KindBollinger:
		trend = signals.ClassifyBollinger(prices, *bands)
	default:
		trend = signals.ClassifyTrend(prices, line)
	}

	// The window is non-empty here, so levels always exist.
	levels, _ := signals.SupportResistance(prices)
	levels = levels.Rounded()

	return &Result{
		CryptoID:       req.CryptoID,
		Indicator:      kind,
		Period:         req.Period,
		Dates:          w.Dates(),
		Prices:         prices,
		Trend:          trend,
		Support:        levels.Support,
		Resistance:     levels.Resistance,
		Volatility:     signals.MeasureVolatility(prices),
		Recommendation: trend.Recommendation(),
		Line:           line,
		Bands:          bands,
	}
}
