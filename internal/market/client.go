// Package market talks to the remote listing API that backs the dashboard:
// cryptocurrency listings, per-coin history and market statistics.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "cryptolens/internal/errors"
	"cryptolens/internal/logging"
	"cryptolens/internal/models"
	"cryptolens/internal/resilience"
	"cryptolens/pkg/utils"
)

// DefaultBaseURL is the address of the dashboard backend.
const DefaultBaseURL = "http://127.0.0.1:5001/api"

// Config configures a Client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Retry             utils.RetryConfig
	Breaker           resilience.BreakerConfig
}

// DefaultConfig returns a config for the local dashboard backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		RequestsPerSecond: 1,
		Burst:             5,
		Timeout:           15 * time.Second,
		Retry:             utils.DefaultRetryConfig(),
		Breaker:           resilience.DefaultBreakerConfig(),
	}
}

// Client is a rate-limited JSON client for the listing API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      utils.RetryConfig
	breaker    *resilience.Breaker
	logger     zerolog.Logger
}

// NewClient creates a client. Zero-valued config fields take their defaults.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	cfg.Retry.Retryable = isRetryable
	cfg.Breaker.IsFailure = isRetryable

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retry:      cfg.Retry,
		breaker:    resilience.NewBreaker("listing-api", cfg.Breaker),
		logger:     logger.With().Str("component", "market").Logger(),
	}
	c.breaker.OnStateChange(func(from, to resilience.CircuitState) {
		c.logger.Warn().Str("from", string(from)).Str("to", string(to)).Msg("API circuit state changed")
	})
	return c
}

// BreakerStats reports the state of the upstream circuit breaker.
func (c *Client) BreakerStats() resilience.BreakerStats {
	return c.breaker.Stats()
}

// ListCryptos returns every listed cryptocurrency in market-cap order.
func (c *Client) ListCryptos(ctx context.Context) ([]models.Crypto, error) {
	var out []models.Crypto
	if err := c.getJSON(ctx, "/cryptos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopCryptos returns the first n listed cryptocurrencies.
func (c *Client) TopCryptos(ctx context.Context, n int) ([]models.Crypto, error) {
	if n < 0 {
		return nil, apperrors.NewValidationError("limit", n, "must not be negative")
	}
	var out []models.Crypto
	if err := c.getJSON(ctx, "/cryptos/top/"+strconv.Itoa(n), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search returns cryptocurrencies whose name or symbol contains query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Crypto, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Crypto{}, nil
	}
	var out []models.Crypto
	if err := c.getJSON(ctx, "/cryptos/search", url.Values{"q": {query}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCrypto returns one cryptocurrency by id.
func (c *Client) GetCrypto(ctx context.Context, id string) (*models.Crypto, error) {
	var out models.Crypto
	if err := c.getJSON(ctx, "/cryptos/"+url.PathEscape(id), nil, &out); err != nil {
		if apperrors.Is(err, apperrors.ErrDataNotFound) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrCryptoNotFound, id)
		}
		return nil, err
	}
	return &out, nil
}

// GetHistory returns the stored history rows of one cryptocurrency.
func (c *Client) GetHistory(ctx context.Context, id string) (models.Series, error) {
	var out models.Series
	if err := c.getJSON(ctx, "/cryptos/"+url.PathEscape(id)+"/history", nil, &out); err != nil {
		if apperrors.Is(err, apperrors.ErrDataNotFound) {
			return nil, apperrors.NewDataError("history", id, "no historical data", apperrors.ErrDataNotFound)
		}
		return nil, err
	}
	return out, nil
}

// GetStats returns the backend's market statistics.
func (c *Client) GetStats(ctx context.Context) (*models.MarketStats, error) {
	var out models.MarketStats
	if err := c.getJSON(ctx, "/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := resilience.ExecuteWithResult(ctx, c.breaker, func() ([]byte, error) {
		return utils.RetryWithResult(ctx, c.retry, func() ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return c.do(ctx, path, endpoint)
		})
	})
	if apperrors.Is(err, resilience.ErrCircuitOpen) {
		return &apperrors.APIError{Endpoint: path, Message: "upstream unavailable", Err: fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)}
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &apperrors.APIError{Endpoint: path, Message: "decode response", Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, path, endpoint string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogAPICall(c.logger, http.MethodGet, path, 0, time.Since(start), err)
		return nil, &apperrors.APIError{Endpoint: path, Message: "request failed", Err: fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.APIError{Endpoint: path, StatusCode: resp.StatusCode, Message: "read body", Err: fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)}
	}

	logging.LogAPICall(c.logger, http.MethodGet, path, resp.StatusCode, time.Since(start), nil)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &apperrors.APIError{Endpoint: path, StatusCode: resp.StatusCode, Message: errorMessage(body), Err: apperrors.ErrDataNotFound}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &apperrors.APIError{Endpoint: path, StatusCode: resp.StatusCode, Message: "rate limited", Err: apperrors.ErrRateLimited}
	case resp.StatusCode >= 300:
		return nil, &apperrors.APIError{Endpoint: path, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// isRetryable retries transport failures, rate limiting and server errors.
func isRetryable(err error) bool {
	var apiErr *apperrors.APIError
	if !apperrors.As(err, &apiErr) {
		return false
	}
	switch {
	case apiErr.StatusCode == 0:
		return true
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return apiErr.StatusCode >= 500
	}
}

// errorMessage extracts the backend's {"error": "..."} message.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
