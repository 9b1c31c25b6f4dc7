package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var errUpstream = errors.New("upstream down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("test", cfg)
	b.now = clock.now
	return b, clock
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if b.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	called := false
	err := b.Execute(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open circuit should reject without calling: err=%v called=%v", err, called)
	}

	stats := b.Stats()
	if stats.TotalRejected != 1 || stats.TotalFailures != 3 || stats.TotalRequests != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if got := stats.FailureRate(); got != 75 {
		t.Errorf("FailureRate = %v, want 75", got)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, succeed)
	_ = b.Execute(ctx, fail)
	if b.State() != CircuitClosed {
		t.Errorf("non-consecutive failures opened the circuit")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: 30 * time.Second})
	ctx := context.Background()

	var transitions []CircuitState
	b.OnStateChange(func(_, to CircuitState) { transitions = append(transitions, to) })

	_ = b.Execute(ctx, fail)
	clock.advance(10 * time.Second)
	if err := b.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("within cooldown err = %v", err)
	}

	// A failed probe reopens the circuit.
	clock.advance(30 * time.Second)
	_ = b.Execute(ctx, fail)
	if b.State() != CircuitOpen {
		t.Fatalf("failed probe state = %s", b.State())
	}

	clock.advance(31 * time.Second)
	if err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != CircuitClosed {
		t.Errorf("state = %s, want closed", b.State())
	}

	want := []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitOpen, CircuitHalfOpen, CircuitClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreakerIgnoresClassifiedErrors(t *testing.T) {
	notFound := errors.New("not found")
	b, _ := newTestBreaker(BreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, notFound) },
	})

	got, err := ExecuteWithResult(context.Background(), b, func() (int, error) { return 0, notFound })
	if !errors.Is(err, notFound) || got != 0 {
		t.Fatalf("got %d, %v", got, err)
	}
	if b.State() != CircuitClosed {
		t.Errorf("client errors must not open the circuit")
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func() error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if b.State() != CircuitClosed {
		t.Errorf("cancellation opened the circuit")
	}
}

// Property: the circuit opens exactly when the trailing run of failures
// reaches the threshold.
func TestProperty_BreakerOpensOnConsecutiveFailures(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("open iff a failure run reached the threshold", prop.ForAll(
		func(outcomes []bool, threshold int) bool {
			b, _ := newTestBreaker(BreakerConfig{FailureThreshold: threshold, Cooldown: time.Hour})
			ctx := context.Background()

			run, opened := 0, false
			for _, ok := range outcomes {
				if opened {
					break
				}
				if ok {
					_ = b.Execute(ctx, succeed)
					run = 0
					continue
				}
				_ = b.Execute(ctx, fail)
				run++
				if run >= threshold {
					opened = true
				}
			}
			return (b.State() == CircuitOpen) == opened
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}
