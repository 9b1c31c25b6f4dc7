// Package resilience guards calls to the remote listing API with a circuit
// breaker so a failing upstream is skipped quickly instead of retried on
// every command.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"    // calls pass through
	CircuitOpen     CircuitState = "open"      // calls are rejected
	CircuitHalfOpen CircuitState = "half_open" // probing for recovery
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that closes it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
	// IsFailure decides which errors count against the upstream. Nil counts all.
	IsFailure func(error) bool
}

// DefaultBreakerConfig returns the defaults used for the listing API.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name   string
	config BreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time

	totalRequests int64
	totalFailures int64
	totalRejected int64

	onStateChange func(from, to CircuitState)
}

// NewBreaker creates a closed breaker. Non-positive thresholds take defaults.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &Breaker{
		name:            name,
		config:          config,
		now:             time.Now,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// OnStateChange registers a callback invoked on every transition. It runs
// with the breaker locked and must not call back into it.
func (b *Breaker) OnStateChange(fn func(from, to CircuitState)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	_, err := ExecuteWithResult(ctx, b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// ExecuteWithResult runs fn with circuit breaker protection. Context
// cancellation is not held against the upstream.
func ExecuteWithResult[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	v, err := fn()
	switch {
	case err == nil:
		b.recordSuccess()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.release()
	case b.config.IsFailure == nil || b.config.IsFailure(err):
		b.recordFailure()
	default:
		b.recordSuccess()
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if b.state == CircuitOpen {
		if b.now().Sub(b.lastFailureTime) < b.config.Cooldown {
			b.totalRejected++
			return ErrCircuitOpen
		}
		b.transitionTo(CircuitHalfOpen)
	}
	return nil
}

// release reopens a half-open circuit whose probe was cancelled.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitHalfOpen {
		b.transitionTo(CircuitOpen)
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(CircuitClosed)
		}
	case CircuitClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	b.lastFailureTime = b.now()

	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.transitionTo(CircuitOpen)
	}
}

func (b *Breaker) transitionTo(state CircuitState) {
	from := b.state
	b.state = state
	b.lastStateChange = b.now()
	b.failures = 0
	b.successes = 0
	if b.onStateChange != nil && from != state {
		b.onStateChange(from, state)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:            b.name,
		State:           b.state,
		TotalRequests:   b.totalRequests,
		TotalFailures:   b.totalFailures,
		TotalRejected:   b.totalRejected,
		CurrentFailures: b.failures,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
	}
}

// BreakerStats holds circuit breaker statistics.
type BreakerStats struct {
	Name            string       `json:"name"`
	State           CircuitState `json:"state"`
	TotalRequests   int64        `json:"total_requests"`
	TotalFailures   int64        `json:"total_failures"`
	TotalRejected   int64        `json:"total_rejected"`
	CurrentFailures int          `json:"current_failures"`
	LastFailureTime time.Time    `json:"last_failure_time"`
	LastStateChange time.Time    `json:"last_state_change"`
}

// FailureRate returns the failure rate as a percentage.
func (s BreakerStats) FailureRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.TotalFailures) / float64(s.TotalRequests) * 100
}
