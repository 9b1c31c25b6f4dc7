// Package server exposes the cached market data and the technical analysis
// as a JSON HTTP API with Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptolens/internal/analysis"
	"cryptolens/internal/analysis/indicators"
	"cryptolens/internal/analysis/series"
	apperrors "cryptolens/internal/errors"
	"cryptolens/internal/logging"
	"cryptolens/internal/market"
	"cryptolens/internal/store"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AllowOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS.
	AllowOrigin string
}

// DefaultConfig returns default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:5001",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowOrigin:     "*",
	}
}

// Server serves the dashboard API from the local store.
type Server struct {
	config    Config
	store     store.DataStore
	analyzer  *analysis.Analyzer
	metrics   *Metrics
	scheduler *Scheduler
	logger    zerolog.Logger
	started   time.Time
}

// NewServer creates a server. A nil metrics value gets a fresh set.
func NewServer(cfg Config, ds store.DataStore, analyzer *analysis.Analyzer, metrics *Metrics, logger zerolog.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{
		config:   cfg,
		store:    ds,
		analyzer: analyzer,
		metrics:  metrics,
		logger:   logger.With().Str("component", "server").Logger(),
		started:  time.Now(),
	}
}

// SetScheduler attaches the sync scheduler started and stopped with the server.
func (s *Server) SetScheduler(sc *Scheduler) {
	s.scheduler = sc
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /api/cryptos", s.handleListCryptos)
	s.route(mux, "GET /api/cryptos/search", s.handleSearch)
	s.route(mux, "GET /api/cryptos/{id}", s.handleGetCrypto)
	// top/{limit} overlaps {id}/history, so both share one pattern.
	s.route(mux, "GET /api/cryptos/{id}/{view}", s.handleCryptoView)
	s.route(mux, "GET /api/stats", s.handleStats)
	s.route(mux, "GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return s.withRequestContext(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	if s.scheduler != nil {
		s.scheduler.Start()
		defer s.scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("Shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// route registers h under pattern, recording metrics labelled by pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		elapsed := time.Since(start)

		s.metrics.RequestsTotal.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(pattern).Observe(elapsed.Seconds())
		logging.LogRequest(logging.FromContext(r.Context()), r.Method, r.URL.Path, rec.status, elapsed)
	})
}

// withRequestContext assigns a request ID, stores a request-scoped logger in
// the context and applies the CORS header.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		if s.config.AllowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.config.AllowOrigin)
		}

		ctx := logging.ContextWithRequestID(r.Context(), id)
		ctx = logging.WithLogger(ctx, logging.WithRequestID(s.logger, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handleListCryptos(w http.ResponseWriter, r *http.Request) {
	cryptos, err := s.store.ListCryptos(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cryptos)
}

func (s *Server) handleCryptoView(w http.ResponseWriter, r *http.Request) {
	id, view := r.PathValue("id"), r.PathValue("view")
	switch {
	case id == "top":
		s.handleTopCryptos(w, r, view)
	case view == "history":
		s.handleHistory(w, r)
	case view == "analysis":
		s.handleAnalysis(w, r)
	default:
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	}
}

func (s *Server) handleTopCryptos(w http.ResponseWriter, r *http.Request, rawLimit string) {
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit < 0 {
		s.writeError(w, r, apperrors.NewValidationError("limit", rawLimit, "must be a non-negative integer"))
		return
	}
	cryptos, err := s.store.ListCryptos(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, market.Top(cryptos, limit))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.SearchCryptos(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetCrypto(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCrypto(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	points, err := s.store.GetHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p := r.URL.Query().Get("period"); p != "" {
		points = series.WindowByPeriod(points, series.Token(p))
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	period := series.Token(q.Get("period"))
	if period == "" {
		period = series.DefaultPeriod
	}
	indicator := strings.ToLower(q.Get("indicator"))
	if indicator == "" {
		indicator = string(indicators.KindSMA)
	}

	points, err := s.store.GetHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req := analysis.Request{CryptoID: id, Series: points, Indicator: indicators.Kind(indicator), Period: period}

	start := time.Now()
	if indicator == "all" {
		results, err := s.analyzer.AnalyzeAll(r.Context(), req)
		s.metrics.AnalysisCompute.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.AnalysisErrors.WithLabelValues(indicator).Inc()
			s.writeError(w, r, err)
			return
		}
		for kind, res := range results {
			s.metrics.AnalysesTotal.WithLabelValues(string(kind), res.Trend.Signal.String()).Inc()
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	s.metrics.AnalysisCompute.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.AnalysisErrors.WithLabelValues(indicator).Inc()
		s.writeError(w, r, err)
		return
	}
	s.metrics.AnalysesTotal.WithLabelValues(string(result.Indicator), result.Trend.Signal.String()).Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	cryptos, err := s.store.ListCryptos(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, market.ComputeStats(cryptos))
}

// HealthStatus is the body of /healthz.
type HealthStatus struct {
	Status      string     `json:"status"`
	UptimeSec   int64      `json:"uptime_sec"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	ListingSize int        `json:"listing_size"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		UptimeSec: int64(time.Since(s.started).Seconds()),
	}
	if t := s.store.GetLastSync(string(store.SyncTypeListing)); !t.IsZero() {
		status.LastSync = &t
	}
	cryptos, err := s.store.ListCryptos(r.Context())
	if err != nil {
		status.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status.ListingSize = len(cryptos)
	writeJSON(w, http.StatusOK, status)
}

// ============================================================================
// Responses
// ============================================================================

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors to the dashboard's status codes and messages.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"

	var (
		dataErr  *apperrors.DataError
		validErr *apperrors.ValidationError
	)
	switch {
	case apperrors.Is(err, apperrors.ErrCryptoNotFound):
		status, msg = http.StatusNotFound, "Crypto not found"
	case apperrors.Is(err, apperrors.ErrDataNotFound):
		status, msg = http.StatusNotFound, "No historical data for "+r.PathValue("id")
	case apperrors.Is(err, apperrors.ErrEmptySeries):
		status, msg = http.StatusUnprocessableEntity, "Insufficient data for the selected period"
		if apperrors.As(err, &dataErr) && dataErr.CryptoID != "" {
			msg += " (" + dataErr.CryptoID + ")"
		}
	case apperrors.Is(err, apperrors.ErrUnknownIndicator):
		status, msg = http.StatusBadRequest, err.Error()
	case apperrors.As(err, &validErr):
		status, msg = http.StatusBadRequest, validErr.Error()
	case errors.Is(err, context.Canceled):
		status, msg = 499, "request cancelled"
	}

	if status >= 500 {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
