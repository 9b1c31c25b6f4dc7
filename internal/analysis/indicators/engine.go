// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	apperrors "cryptolens/internal/errors"
)

// Kind names an indicator the dashboard can request.
type Kind string

const (
	KindSMA       Kind = "sma"
	KindEMA       Kind = "ema"
	KindRSI       Kind = "rsi"
	KindMACD      Kind = "macd"
	KindBollinger Kind = "bollinger"
)

// Default indicator parameters.
const (
	DefaultSMAPeriod       = 20
	DefaultEMAPeriod       = 20
	DefaultRSIPeriod       = 14
	DefaultMACDFast        = 12
	DefaultMACDSlow        = 26
	DefaultBollingerPeriod = 20
	DefaultBollingerStdDev = 2.0
)

// Kinds returns every supported indicator kind.
func Kinds() []Kind {
	return []Kind{KindSMA, KindEMA, KindRSI, KindMACD, KindBollinger}
}

// ParseKind parses an indicator name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownIndicator, s)
}

// Title returns the display name of the kind.
func (k Kind) Title() string {
	switch k {
	case KindSMA:
		return "Simple Moving Average"
	case KindEMA:
		return "Exponential Moving Average"
	case KindRSI:
		return "Relative Strength Index"
	case KindMACD:
		return "MACD"
	case KindBollinger:
		return "Bollinger Bands"
	default:
		return string(k)
	}
}

// Indicator defines the interface for single-value technical indicators.
type Indicator interface {
	Kind() Kind
	Name() string
	Calculate(prices []float64) (Line, error)
	Period() int
}

// MultiValueIndicator defines the interface for indicators that return multiple values.
type MultiValueIndicator interface {
	Kind() Kind
	Name() string
	Calculate(prices []float64) (map[string]Line, error)
	Period() int
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers     int
	indicators  map[Kind]Indicator
	multiIndics map[Kind]MultiValueIndicator
	mu          sync.RWMutex
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:     workers,
		indicators:  make(map[Kind]Indicator),
		multiIndics: make(map[Kind]MultiValueIndicator),
	}
}

// NewDefaultEngine creates an engine with every indicator registered using
// the default parameters.
func NewDefaultEngine(workers int) *Engine {
	e := NewEngine(workers)
	e.RegisterIndicator(NewSMA(DefaultSMAPeriod))
	e.RegisterIndicator(NewEMA(DefaultEMAPeriod))
	e.RegisterIndicator(NewRSI(DefaultRSIPeriod))
	e.RegisterIndicator(NewMACD(DefaultMACDFast, DefaultMACDSlow))
	e.RegisterMultiIndicator(NewBollingerBands(DefaultBollingerPeriod, DefaultBollingerStdDev))
	return e
}

// RegisterIndicator registers a single-value indicator, replacing any
// indicator of the same kind.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.multiIndics, ind.Kind())
	e.indicators[ind.Kind()] = ind
}

// RegisterMultiIndicator registers a multi-value indicator, replacing any
// indicator of the same kind.
func (e *Engine) RegisterMultiIndicator(ind MultiValueIndicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.indicators, ind.Kind())
	e.multiIndics[ind.Kind()] = ind
}

// IsMulti reports whether kind is registered as a multi-value indicator.
func (e *Engine) IsMulti(kind Kind) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.multiIndics[kind]
	return ok
}

// Results holds the outputs of a CalculateAll run.
type Results struct {
	Single map[Kind]Line
	Multi  map[Kind]map[string]Line
}

// CalculateAll calculates all registered indicators in parallel. Failed
// indicators are left out of the results and their errors joined.
func (e *Engine) CalculateAll(ctx context.Context, prices []float64) (*Results, error) {
	e.mu.RLock()
	indicators := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		indicators = append(indicators, ind)
	}
	multiIndics := make([]MultiValueIndicator, 0, len(e.multiIndics))
	for _, ind := range e.multiIndics {
		multiIndics = append(multiIndics, ind)
	}
	e.mu.RUnlock()

	results := &Results{
		Single: make(map[Kind]Line),
		Multi:  make(map[Kind]map[string]Line),
	}
	var errs []error
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Single- and multi-value work share one queue of closures.
	work := make(chan func(), len(indicators)+len(multiIndics))

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				select {
				case <-ctx.Done():
					return
				default:
					job()
				}
			}
		}()
	}

	for _, ind := range indicators {
		ind := ind
		work <- func() {
			values, err := ind.Calculate(prices)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ind.Name(), err))
				return
			}
			results.Single[ind.Kind()] = values
		}
	}
	for _, ind := range multiIndics {
		ind := ind
		work <- func() {
			values, err := ind.Calculate(prices)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ind.Name(), err))
				return
			}
			results.Multi[ind.Kind()] = values
		}
	}
	close(work)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, errors.Join(errs...)
}

// Calculate calculates a specific single-value indicator by kind.
func (e *Engine) Calculate(ctx context.Context, kind Kind, prices []float64) (Line, error) {
	e.mu.RLock()
	ind, ok := e.indicators[kind]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownIndicator, kind)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(prices)
	}
}

// CalculateMulti calculates a specific multi-value indicator by kind.
func (e *Engine) CalculateMulti(ctx context.Context, kind Kind, prices []float64) (map[string]Line, error) {
	e.mu.RLock()
	ind, ok := e.multiIndics[kind]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: multi-value %s", apperrors.ErrUnknownIndicator, kind)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(prices)
	}
}

// ListIndicators returns the names of all registered indicators.
func (e *Engine) ListIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indicators)+len(e.multiIndics))
	for _, ind := range e.indicators {
		names = append(names, ind.Name())
	}
	for _, ind := range e.multiIndics {
		names = append(names, ind.Name())
	}
	return names
}
